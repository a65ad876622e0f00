// Package dedup remembers which token addresses were already surfaced to a user.
package dedup

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-autotrader/internal/idhash"
)

// Defaults match the limits the bot has always run with.
const (
	DefaultTTL        = 24 * time.Hour
	DefaultHighWater  = 1000
	DefaultEvictBatch = 100
	DefaultHardCap    = 2000

	persistTimeout = 3 * time.Second
)

// Persister stores dedup records outside the process.
// Records are (hash, insertion time in ms) pairs keyed by user.
type Persister interface {
	Load(ctx context.Context, userID string, notBeforeMs int64) (map[string]int64, error)
	Save(ctx context.Context, userID, hash string, tsMs int64) error
	Remove(ctx context.Context, userID string, hashes []string) error
	Clear(ctx context.Context, userID string) error
}

// Config bounds a user's record set.
type Config struct {
	TTL        time.Duration
	HighWater  int // eviction starts when the set grows past this
	EvictBatch int // oldest records dropped per eviction
	HardCap    int // absolute upper bound regardless of age
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		TTL:        DefaultTTL,
		HighWater:  DefaultHighWater,
		EvictBatch: DefaultEvictBatch,
		HardCap:    DefaultHardCap,
	}
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithPersister enables write-through persistence.
func WithPersister(p Persister) Option {
	return func(c *Cache) {
		c.persister = p
	}
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger.With().Str("component", "dedup").Logger()
	}
}

// userRecords is one user's hash set. mu serializes all access for the user.
type userRecords struct {
	mu      sync.Mutex
	entries map[string]int64 // hash -> insertion ms
}

// Cache is a per-user set of address hashes with TTL expiry and
// size-bounded eviction. Different users never contend on the same lock.
type Cache struct {
	cfg       Config
	now       func() time.Time
	persister Persister
	logger    zerolog.Logger

	mu    sync.Mutex // guards users map only
	users map[string]*userRecords
}

// New creates a cache. Zero fields in cfg take the defaults.
func New(cfg Config, opts ...Option) *Cache {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.HighWater <= 0 {
		cfg.HighWater = def.HighWater
	}
	if cfg.EvictBatch <= 0 {
		cfg.EvictBatch = def.EvictBatch
	}
	if cfg.HardCap <= 0 {
		cfg.HardCap = def.HardCap
	}
	if cfg.HardCap < cfg.HighWater {
		cfg.HardCap = cfg.HighWater
	}

	c := &Cache{
		cfg:    cfg,
		now:    time.Now,
		logger: zerolog.Nop(),
		users:  make(map[string]*userRecords),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) records(userID string) *userRecords {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.users[userID]
	if !ok {
		r = &userRecords{entries: make(map[string]int64)}
		c.users[userID] = r
	}
	return r
}

// Seen reports whether the address was marked for the user within the TTL.
// Expired records are purged as a side effect.
func (c *Cache) Seen(userID, tokenAddr string) bool {
	hash := idhash.AddressHash(tokenAddr)
	r := c.records(userID)

	r.mu.Lock()
	defer r.mu.Unlock()

	c.pruneExpired(r)
	_, ok := r.entries[hash]
	return ok
}

// MarkSeen records the address for the user, refreshing its timestamp if
// already present, then applies eviction.
func (c *Cache) MarkSeen(userID, tokenAddr string) {
	hash := idhash.AddressHash(tokenAddr)
	nowMs := c.now().UnixMilli()
	r := c.records(userID)

	// Persist under r.mu; Forget clears memory and store under the same lock.
	r.mu.Lock()
	defer r.mu.Unlock()

	c.pruneExpired(r)
	r.entries[hash] = nowMs
	evicted := c.evict(r)

	if c.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.persister.Save(ctx, userID, hash, nowMs); err != nil {
		c.logger.Warn().Err(err).Str("user", userID).Msg("persist dedup record failed")
	}
	if len(evicted) > 0 {
		if err := c.persister.Remove(ctx, userID, evicted); err != nil {
			c.logger.Warn().Err(err).Str("user", userID).Int("count", len(evicted)).Msg("persist dedup eviction failed")
		}
	}
}

// Len returns the number of unexpired records held for the user.
func (c *Cache) Len(userID string) int {
	r := c.records(userID)

	r.mu.Lock()
	defer r.mu.Unlock()

	c.pruneExpired(r)
	return len(r.entries)
}

// Warm loads the user's unexpired records from the persister.
// Loaded records never override newer in-memory ones.
func (c *Cache) Warm(ctx context.Context, userID string) error {
	if c.persister == nil {
		return nil
	}
	notBefore := c.now().Add(-c.cfg.TTL).UnixMilli()
	loaded, err := c.persister.Load(ctx, userID, notBefore)
	if err != nil {
		return err
	}

	r := c.records(userID)
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, ts := range loaded {
		if cur, ok := r.entries[hash]; !ok || cur < ts {
			r.entries[hash] = ts
		}
	}
	c.pruneExpired(r)
	c.evict(r)
	return nil
}

// Forget drops all of the user's records, including persisted ones.
// The user's record set is cleared in place, never detached, so writers
// holding it stay visible.
func (c *Cache) Forget(ctx context.Context, userID string) error {
	r := c.records(userID)
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.entries)

	if c.persister == nil {
		return nil
	}
	return c.persister.Clear(ctx, userID)
}

// pruneExpired deletes records older than the TTL. Caller holds r.mu.
func (c *Cache) pruneExpired(r *userRecords) {
	cutoff := c.now().Add(-c.cfg.TTL).UnixMilli()
	for hash, ts := range r.entries {
		if ts <= cutoff {
			delete(r.entries, hash)
		}
	}
}

// evict drops the oldest batch once past the high-water mark, then trims to
// the hard cap. Returns the removed hashes. Caller holds r.mu.
func (c *Cache) evict(r *userRecords) []string {
	if len(r.entries) <= c.cfg.HighWater {
		return nil
	}

	type rec struct {
		hash string
		ts   int64
	}
	ordered := make([]rec, 0, len(r.entries))
	for h, ts := range r.entries {
		ordered = append(ordered, rec{h, ts})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ts != ordered[j].ts {
			return ordered[i].ts < ordered[j].ts
		}
		return ordered[i].hash < ordered[j].hash
	})

	drop := c.cfg.EvictBatch
	if over := len(ordered) - c.cfg.HardCap; over > drop {
		drop = over
	}
	if drop > len(ordered) {
		drop = len(ordered)
	}

	evicted := make([]string, 0, drop)
	for _, e := range ordered[:drop] {
		delete(r.entries, e.hash)
		evicted = append(evicted, e.hash)
	}
	return evicted
}
