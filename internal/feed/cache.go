package feed

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/observability"
)

const (
	// DefaultCacheTTL is how long a candidate snapshot is served before refetching.
	DefaultCacheTTL     = 60 * time.Second
	// DefaultFetchTimeout bounds a shared upstream call.
	DefaultFetchTimeout = 15 * time.Second
)

// PriceSource returns a live price when one is fresh.
type PriceSource interface {
	Price(address string) (float64, bool)
}

// Cache shares one candidate snapshot across all users. Concurrent refreshes
// collapse into a single upstream call.
type Cache struct {
	upstream PriceFeed
	live     PriceSource
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu         sync.RWMutex
	candidates []domain.TokenCandidate
	fetchedAt  time.Time

	group singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets the snapshot TTL.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithFetchTimeout bounds each shared upstream call.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.timeout = d
	}
}

// WithLivePrices prefers prices pushed by a stream over upstream lookups.
func WithLivePrices(live PriceSource) CacheOption {
	return func(c *Cache) {
		c.live = live
	}
}

// WithCacheClock overrides the time source.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache wraps upstream with a shared snapshot cache.
func NewCache(upstream PriceFeed, opts ...CacheOption) *Cache {
	c := &Cache{
		upstream: upstream,
		ttl:      DefaultCacheTTL,
		timeout:  DefaultFetchTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCandidates returns the cached snapshot, refreshing it when stale.
func (c *Cache) FetchCandidates(ctx context.Context) ([]domain.TokenCandidate, error) {
	c.mu.RLock()
	fresh := !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl
	snapshot := c.candidates
	c.mu.RUnlock()

	if fresh {
		return copyCandidates(snapshot), nil
	}
	return c.Refresh(ctx)
}

// Refresh fetches a new snapshot from upstream. On failure the previous
// snapshot is kept but not returned.
func (c *Cache) Refresh(ctx context.Context) ([]domain.TokenCandidate, error) {
	v, err := c.do(ctx, "candidates", func(ctx context.Context) (interface{}, error) {
		tokens, err := c.upstream.FetchCandidates(ctx)
		if err != nil {
			observability.RecordFeedRefresh("error", 0)
			return nil, err
		}
		c.mu.Lock()
		c.candidates = tokens
		c.fetchedAt = c.now()
		c.mu.Unlock()
		observability.RecordFeedRefresh("ok", len(tokens))
		return tokens, nil
	})
	if err != nil {
		return nil, err
	}
	return copyCandidates(v.([]domain.TokenCandidate)), nil
}

// FetchCurrentPrice prefers a fresh live price, then asks upstream.
// Lookups for the same address are coalesced.
func (c *Cache) FetchCurrentPrice(ctx context.Context, address string) (float64, error) {
	if c.live != nil {
		if price, ok := c.live.Price(address); ok {
			return price, nil
		}
	}
	v, err := c.do(ctx, "price:"+address, func(ctx context.Context) (interface{}, error) {
		return c.upstream.FetchCurrentPrice(ctx, address)
	})
	if err != nil {
		observability.RecordPriceLookupError()
		return 0, err
	}
	return v.(float64), nil
}

// do runs fn once per key for all concurrent callers. The shared call is
// detached from the caller that started it, so cancelling one caller does not
// fail the others; each caller still returns early on its own ctx.
func (c *Cache) do(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return fn(sctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.Val, r.Err
	}
}

// Age returns how old the current snapshot is; zero before the first fetch.
func (c *Cache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() {
		return 0
	}
	return c.now().Sub(c.fetchedAt)
}

func copyCandidates(in []domain.TokenCandidate) []domain.TokenCandidate {
	if in == nil {
		return nil
	}
	out := make([]domain.TokenCandidate, len(in))
	copy(out, in)
	return out
}

var _ PriceFeed = (*Cache)(nil)
