package execution

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-autotrader/internal/domain"
)

// fakeAdapter succeeds or fails after delay, recording cancellation.
type fakeAdapter struct {
	name      string
	delay     time.Duration
	err       error
	txID      string
	cancelled atomic.Bool
	done      chan struct{}
	gotAmount atomic.Value
}

func newFake(name string, delay time.Duration, err error) *fakeAdapter {
	return &fakeAdapter{name: name, delay: delay, err: err, txID: "tx-" + name, done: make(chan struct{})}
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) run(ctx context.Context, amount float64) (Execution, error) {
	defer close(f.done)
	f.gotAmount.Store(amount)
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		f.cancelled.Store(true)
		return Execution{}, ctx.Err()
	}
	if f.err != nil {
		return Execution{}, f.err
	}
	if amount == 0 {
		return Execution{AmountOut: 42}, nil
	}
	return Execution{TxID: f.txID, AmountIn: amount, AmountOut: 1000}, nil
}

func (f *fakeAdapter) Buy(ctx context.Context, _ string, amount float64, _ domain.Signer) (Execution, error) {
	return f.run(ctx, amount)
}

func (f *fakeAdapter) Sell(ctx context.Context, _ string, amount float64, _ domain.Signer) (Execution, error) {
	return f.run(ctx, amount)
}

// buyOnly implements Buyer but not Seller.
type buyOnly struct{ name string }

func (b buyOnly) Name() string { return b.name }
func (b buyOnly) Buy(context.Context, string, float64, domain.Signer) (Execution, error) {
	return Execution{TxID: "buy-only"}, nil
}

func TestRouter_FastestSuccessWins(t *testing.T) {
	slow := newFake("slow", 500*time.Millisecond, nil)
	fast := newFake("fast", 10*time.Millisecond, nil)
	failing := newFake("failing", 0, errors.New("pool not found"))

	r := NewRouter([]Adapter{slow, failing, fast})
	fill, err := r.Buy(context.Background(), "MintA", 0.01, nil)
	require.NoError(t, err)

	assert.Equal(t, "fast", fill.Source)
	assert.Equal(t, "tx-fast", fill.TxID)
	assert.Equal(t, domain.SideBuy, fill.Side)
	assert.Equal(t, "MintA", fill.Mint)

	select {
	case <-slow.done:
	case <-time.After(time.Second):
		t.Fatal("slow adapter never returned")
	}
	assert.True(t, slow.cancelled.Load(), "slower adapter must observe cancellation")
}

func TestRouter_AllFail(t *testing.T) {
	a := newFake("jupiter", 0, errors.New("no liquidity"))
	b := newFake("raydium", 5*time.Millisecond, errors.New("pool closed"))
	c := buyOnly{name: "direct"}

	r := NewRouter([]Adapter{a, b, c})
	_, err := r.Sell(context.Background(), "MintA", 100, nil)
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrRouteExhausted))
	assert.True(t, errors.Is(err, ErrUnsupportedSide), "missing direction is a per-source failure")
	assert.Contains(t, err.Error(), "jupiter: no liquidity")
	assert.Contains(t, err.Error(), "raydium: pool closed")
	assert.Contains(t, err.Error(), "direct: ")

	var routeErr *RouteError
	require.True(t, errors.As(err, &routeErr))
	require.Len(t, routeErr.Failures, 3)
	assert.Equal(t, []string{"jupiter", "raydium", "direct"},
		[]string{routeErr.Failures[0].Source, routeErr.Failures[1].Source, routeErr.Failures[2].Source})
}

func TestRouter_MissingDirectionDoesNotBlockOthers(t *testing.T) {
	seller := newFake("seller", 5*time.Millisecond, nil)
	r := NewRouter([]Adapter{buyOnly{name: "buyer"}, seller})

	fill, err := r.Sell(context.Background(), "MintA", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, "seller", fill.Source)
}

func TestRouter_ZeroAmountProbe(t *testing.T) {
	a := newFake("a", 0, nil)
	r := NewRouter([]Adapter{a})

	fill, err := r.Buy(context.Background(), "MintA", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, fill.TxID, "probe must not submit")
	assert.Equal(t, float64(0), a.gotAmount.Load())
	assert.Equal(t, float64(42), fill.AmountOut)
}

func TestRouter_InvalidOrder(t *testing.T) {
	r := NewRouter([]Adapter{newFake("a", 0, nil)})

	_, err := r.Buy(context.Background(), "MintA", -1, nil)
	assert.True(t, errors.Is(err, ErrInvalidOrder))

	_, err = r.Buy(context.Background(), "", 1, nil)
	assert.True(t, errors.Is(err, ErrInvalidOrder))
}

func TestRouter_NoAdapters(t *testing.T) {
	_, err := NewRouter(nil).Buy(context.Background(), "MintA", 1, nil)
	assert.True(t, errors.Is(err, ErrRouteExhausted))
}

func TestRouter_ParentCancellation(t *testing.T) {
	a := newFake("a", time.Second, nil)
	b := newFake("b", time.Second, nil)
	r := NewRouter([]Adapter{a, b})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Buy(ctx, "MintA", 1, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, a.cancelled.Load())
	assert.True(t, b.cancelled.Load())
}

func TestRouteError_Message(t *testing.T) {
	err := &RouteError{
		Side: domain.SideBuy,
		Mint: "MintA",
		Failures: []SourceError{
			{Source: "jupiter", Err: errors.New("x")},
			{Source: "raydium", Err: errors.New("y")},
		},
	}
	assert.Equal(t, "buy MintA: all sources failed: jupiter: x | raydium: y", err.Error())
}
