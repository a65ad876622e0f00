// Package engine runs per-user strategy scans and supervises the positions
// they open.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-autotrader/internal/dedup"
	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/feed"
	"solana-autotrader/internal/monitor"
	"solana-autotrader/internal/notify"
	"solana-autotrader/internal/observability"
	"solana-autotrader/internal/solana"
	"solana-autotrader/internal/storage"
)

// Defaults for Options.
const (
	DefaultScanInterval    = 5 * time.Second
	DefaultRefreshInterval = 60 * time.Second
	DefaultCleanupInterval = time.Hour
	DefaultFeeReserveSOL   = 0.005
	DefaultScanConcurrency = 8
)

// CandidateFeed is the shared, cached market-data source.
type CandidateFeed interface {
	feed.PriceFeed
	Refresh(ctx context.Context) ([]domain.TokenCandidate, error)
}

// Trader executes buys and sells.
type Trader interface {
	Buy(ctx context.Context, mint string, amountSOL float64, signer domain.Signer) (domain.Fill, error)
	Sell(ctx context.Context, mint string, amount float64, signer domain.Signer) (domain.Fill, error)
}

// Balances reads wallet and token-account balances.
type Balances interface {
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
	GetTokenAccountBalance(ctx context.Context, account string) (*solana.TokenAmount, error)
}

// Options for creating Engine.
type Options struct {
	// Required
	Feed     CandidateFeed
	Trader   Trader
	Balances Balances
	Dedup    *dedup.Cache

	// Optional
	Users     storage.UserStore
	Positions storage.PositionStore
	Fills     storage.FillStore
	Watcher   feed.Watcher
	Notifier  notify.Notifier
	Logger    zerolog.Logger

	ScanInterval    time.Duration
	RefreshInterval time.Duration
	CleanupInterval time.Duration
	MonitorInterval time.Duration
	FeeReserveSOL   float64 // kept in the wallet on top of the buy amount
	ScanConcurrency int     // users scanned in parallel
	Now             func() time.Time
}

// Engine owns the user registry, scan loops and all position monitors.
type Engine struct {
	opts   Options
	logger zerolog.Logger

	// root outlives individual scans; monitors derive from it.
	root       context.Context
	rootCancel context.CancelFunc
	monitors   sync.WaitGroup

	mu    sync.RWMutex // guards users map only
	users map[string]*userState
}

// New creates an engine. Call Run to start the loops.
func New(opts Options) *Engine {
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = DefaultScanInterval
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.FeeReserveSOL <= 0 {
		opts.FeeReserveSOL = DefaultFeeReserveSOL
	}
	if opts.ScanConcurrency <= 0 {
		opts.ScanConcurrency = DefaultScanConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}

	root, cancel := context.WithCancel(context.Background())
	return &Engine{
		opts:       opts,
		logger:     opts.Logger.With().Str("component", "engine").Logger(),
		root:       root,
		rootCancel: cancel,
		users:      make(map[string]*userState),
	}
}

// AddUser registers or replaces a user. The user's signer must be attached.
// Persisted dedup records are loaded when a persister is configured.
func (e *Engine) AddUser(ctx context.Context, u domain.User) error {
	if u.UserID == "" {
		return fmt.Errorf("%w: empty user id", storage.ErrInvalidInput)
	}
	if err := u.Strategy.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	st, ok := e.users[u.UserID]
	if !ok {
		st = newUserState(u)
		e.users[u.UserID] = st
	}
	e.mu.Unlock()
	if ok {
		st.setUser(u)
	}

	if err := e.opts.Dedup.Warm(ctx, u.UserID); err != nil {
		e.logger.Warn().Err(err).Str("user", u.UserID).Msg("warm dedup cache failed")
	}
	return nil
}

// User returns the registered user.
func (e *Engine) User(userID string) (domain.User, bool) {
	st := e.state(userID)
	if st == nil {
		return domain.User{}, false
	}
	return st.snapshotUser(), true
}

// OpenPositions returns the live positions of a user ordered by open time.
func (e *Engine) OpenPositions(userID string) ([]domain.Position, error) {
	st := e.state(userID)
	if st == nil {
		return nil, ErrUnknownUser
	}
	return st.positions(), nil
}

// Deactivate stops scanning for the user and cancels all of their monitors.
// Positions stay open in the store and are picked up again by Resume.
func (e *Engine) Deactivate(ctx context.Context, userID string) error {
	st := e.state(userID)
	if st == nil {
		return ErrUnknownUser
	}

	cancelled := st.deactivate()
	for _, cancel := range cancelled {
		cancel()
	}

	if e.opts.Users != nil {
		if err := e.opts.Users.SetActive(ctx, userID, false); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("persist deactivation: %w", err)
		}
	}
	e.logger.Info().Str("user", userID).Int("monitors", len(cancelled)).Msg("user deactivated")
	return nil
}

// Resume restarts monitors for every open position in the store whose user
// is registered and active. Returns how many monitors were started.
func (e *Engine) Resume(ctx context.Context) (int, error) {
	if e.opts.Positions == nil {
		return 0, nil
	}
	open, err := e.opts.Positions.ListOpen(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list open positions: %w", err)
	}

	started := 0
	for _, p := range open {
		st := e.state(p.UserID)
		if st == nil {
			e.logger.Warn().Str("user", p.UserID).Str("position", p.PositionID).Msg("open position for unknown user, not resumed")
			continue
		}
		u := st.snapshotUser()
		if u.Signer == nil {
			e.logger.Warn().Str("user", p.UserID).Str("position", p.PositionID).Msg("no signer, position not resumed")
			continue
		}
		if err := st.reserve(p.Mint, 0); err != nil {
			continue // already monitored or user inactive
		}
		if e.spawn(st, *p, u) {
			started++
		}
	}
	e.logger.Info().Int("positions", started).Msg("resumed monitors")
	return started, nil
}

// Run drives the scan, refresh and cleanup loops until ctx is done, then
// cancels all monitors. Call Wait to join them.
func (e *Engine) Run(ctx context.Context) error {
	defer e.rootCancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.loop(gctx, e.opts.RefreshInterval, func(ctx context.Context) {
			if _, err := e.opts.Feed.Refresh(ctx); err != nil {
				e.logger.Warn().Err(err).Msg("feed refresh failed")
			}
		})
		return nil
	})
	g.Go(func() error {
		e.loop(gctx, e.opts.ScanInterval, func(ctx context.Context) {
			e.ScanOnce(ctx)
		})
		return nil
	})
	g.Go(func() error {
		e.loop(gctx, e.opts.CleanupInterval, e.cleanup)
		return nil
	})
	return g.Wait()
}

// Wait blocks until every monitor goroutine has returned.
func (e *Engine) Wait() {
	e.monitors.Wait()
}

// Shutdown cancels all monitors and waits for them.
func (e *Engine) Shutdown() {
	e.rootCancel()
	e.monitors.Wait()
}

// loop runs fn immediately and then every interval until ctx is done.
func (e *Engine) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cleanup forgets dedup records of users whose strategy is disabled.
func (e *Engine) cleanup(ctx context.Context) {
	for _, st := range e.states() {
		u := st.snapshotUser()
		if u.Strategy.Enabled {
			continue
		}
		if err := e.opts.Dedup.Forget(ctx, u.UserID); err != nil {
			e.logger.Warn().Err(err).Str("user", u.UserID).Msg("forget dedup records failed")
		}
	}
}

func (e *Engine) state(userID string) *userState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.users[userID]
}

// states returns registered users ordered by ID.
func (e *Engine) states() []*userState {
	e.mu.RLock()
	out := make([]*userState, 0, len(e.users))
	for _, st := range e.users {
		out = append(out, st)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].id < out[j].id
	})
	return out
}

// spawn starts the monitor goroutine for pos. The mint must already be
// reserved in st. Returns false when the user was deactivated meanwhile; the
// position then stays open in the store for a later resume.
func (e *Engine) spawn(st *userState, pos domain.Position, u domain.User) bool {
	ctx, cancel := context.WithCancel(e.root)

	m := monitor.New(pos, monitor.Config{
		Strategy:  u.Strategy,
		Signer:    u.Signer,
		Prices:    e.opts.Feed,
		Seller:    e.opts.Trader,
		Positions: e.opts.Positions,
		Fills:     e.opts.Fills,
		Notifier:  e.opts.Notifier,
		Logger:    e.opts.Logger,
		Interval:  e.opts.MonitorInterval,
		Now:       e.opts.Now,
	})
	if !st.attach(pos.Mint, m, cancel) {
		cancel()
		e.logger.Info().
			Str("user", u.UserID).
			Str("position", pos.PositionID).
			Msg("user deactivated, position not monitored")
		return false
	}
	observability.RecordPositionOpened()
	if e.opts.Watcher != nil {
		e.opts.Watcher.Watch(pos.Mint)
	}

	e.monitors.Add(1)
	go func() {
		defer e.monitors.Done()
		defer cancel()
		m.Run(ctx)
		st.release(pos.Mint, m)
		if e.opts.Watcher != nil {
			e.opts.Watcher.Unwatch(pos.Mint)
		}
	}()
	return true
}
