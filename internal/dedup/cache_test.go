package dedup

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-autotrader/internal/idhash"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestCache_NormalizesAddress(t *testing.T) {
	c := New(DefaultConfig())

	c.MarkSeen("u1", "AbC")
	assert.True(t, c.Seen("u1", "abc "))
	assert.True(t, c.Seen("u1", " ABC"))
	assert.False(t, c.Seen("u2", "abc"), "users are independent")
}

func TestCache_TTLExpiry(t *testing.T) {
	clock := newClock()
	c := New(Config{TTL: time.Hour}, WithClock(clock.Now))

	c.MarkSeen("u1", "AbC")
	clock.Advance(59 * time.Minute)
	assert.True(t, c.Seen("u1", "abc"))

	clock.Advance(2 * time.Minute)
	assert.False(t, c.Seen("u1", "abc"))
	assert.Equal(t, 0, c.Len("u1"), "expired record should be purged on lookup")
}

func TestCache_MarkSeenRefreshes(t *testing.T) {
	clock := newClock()
	c := New(Config{TTL: time.Hour}, WithClock(clock.Now))

	c.MarkSeen("u1", "mint")
	clock.Advance(50 * time.Minute)
	c.MarkSeen("u1", "mint")
	clock.Advance(50 * time.Minute)
	assert.True(t, c.Seen("u1", "mint"))
}

func TestCache_HighWaterEviction(t *testing.T) {
	clock := newClock()
	c := New(Config{TTL: 24 * time.Hour, HighWater: 10, EvictBatch: 3, HardCap: 20}, WithClock(clock.Now))

	for i := 0; i < 11; i++ {
		c.MarkSeen("u1", fmt.Sprintf("mint-%02d", i))
		clock.Advance(time.Second)
	}

	// 11 > 10 drops the 3 oldest
	assert.Equal(t, 8, c.Len("u1"))
	for i := 0; i < 3; i++ {
		assert.False(t, c.Seen("u1", fmt.Sprintf("mint-%02d", i)), "oldest %d should be evicted", i)
	}
	assert.True(t, c.Seen("u1", "mint-03"))
	assert.True(t, c.Seen("u1", "mint-10"))
}

func TestCache_HardCapNeverExceeded(t *testing.T) {
	clock := newClock()
	cfg := Config{TTL: 24 * time.Hour, HighWater: 50, EvictBatch: 5, HardCap: 60}
	c := New(cfg, WithClock(clock.Now))

	for i := 0; i < 500; i++ {
		c.MarkSeen("u1", fmt.Sprintf("mint-%d", i))
		require.LessOrEqual(t, c.Len("u1"), cfg.HardCap)
		clock.Advance(time.Millisecond)
	}
	assert.True(t, c.Seen("u1", "mint-499"))
}

func TestCache_ConcurrentSameUser(t *testing.T) {
	c := New(Config{TTL: time.Hour, HighWater: 10_000, HardCap: 10_000})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.MarkSeen("u1", fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 800, c.Len("u1"), "no lost updates")
}

type memPersister struct {
	mu      sync.Mutex
	records map[string]map[string]int64
}

func newMemPersister() *memPersister {
	return &memPersister{records: make(map[string]map[string]int64)}
}

func (p *memPersister) Load(_ context.Context, userID string, notBeforeMs int64) (map[string]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int64)
	for h, ts := range p.records[userID] {
		if ts > notBeforeMs {
			out[h] = ts
		}
	}
	return out, nil
}

func (p *memPersister) Save(_ context.Context, userID, hash string, tsMs int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.records[userID] == nil {
		p.records[userID] = make(map[string]int64)
	}
	p.records[userID][hash] = tsMs
	return nil
}

func (p *memPersister) Remove(_ context.Context, userID string, hashes []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		delete(p.records[userID], h)
	}
	return nil
}

func (p *memPersister) Clear(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.records, userID)
	return nil
}

func TestCache_WarmAndForget(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	p := newMemPersister()

	first := New(DefaultConfig(), WithClock(clock.Now), WithPersister(p))
	first.MarkSeen("u1", "MintA")
	require.Contains(t, p.records["u1"], idhash.AddressHash("minta"))

	// Simulated restart
	second := New(DefaultConfig(), WithClock(clock.Now), WithPersister(p))
	assert.False(t, second.Seen("u1", "MintA"))
	require.NoError(t, second.Warm(ctx, "u1"))
	assert.True(t, second.Seen("u1", "minta"))

	require.NoError(t, second.Forget(ctx, "u1"))
	assert.False(t, second.Seen("u1", "MintA"))
	assert.Empty(t, p.records["u1"])
}

func TestCache_ForgetRacingMarkSeenStaysConsistent(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	c := New(Config{TTL: time.Hour, HighWater: 10_000, HardCap: 10_000}, WithPersister(p))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c.MarkSeen("u1", fmt.Sprintf("mint-%d", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, c.Forget(ctx, "u1"))
		}
	}()
	wg.Wait()

	// Every record in memory is persisted and vice versa.
	p.mu.Lock()
	persisted := len(p.records["u1"])
	p.mu.Unlock()
	assert.Equal(t, persisted, c.Len("u1"))
	for i := 0; i < 200; i++ {
		addr := fmt.Sprintf("mint-%d", i)
		p.mu.Lock()
		_, stored := p.records["u1"][idhash.AddressHash(addr)]
		p.mu.Unlock()
		assert.Equal(t, stored, c.Seen("u1", addr), addr)
	}
}
