// Package execution races trade-source adapters for buy and sell orders.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/observability"
)

// Execution is an adapter's report of a completed swap.
// A probe (zero amount) has an empty TxID.
type Execution struct {
	TxID      string
	AmountIn  float64 // SOL for buys, token atomic units for sells
	AmountOut float64 // token atomic units for buys, lamports for sells
}

// Adapter is a named trade source.
type Adapter interface {
	Name() string
}

// Buyer swaps SOL into a token. amountSOL of zero only discovers a route.
type Buyer interface {
	Adapter
	Buy(ctx context.Context, mint string, amountSOL float64, signer domain.Signer) (Execution, error)
}

// Seller swaps a token into SOL. amount is in token atomic units; zero only
// discovers a route.
type Seller interface {
	Adapter
	Sell(ctx context.Context, mint string, amount float64, signer domain.Signer) (Execution, error)
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Router) {
		r.logger = logger.With().Str("component", "router").Logger()
	}
}

// WithClock overrides the time source used for fill timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// Router runs one concurrent attempt per adapter and keeps the first success.
// It never retries; callers decide when to try again.
type Router struct {
	adapters []Adapter
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRouter creates a router over adapters.
func NewRouter(adapters []Adapter, opts ...Option) *Router {
	r := &Router{
		adapters: append([]Adapter(nil), adapters...),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sources returns the adapter names in race order.
func (r *Router) Sources() []string {
	names := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		names[i] = a.Name()
	}
	return names
}

// Buy spends amountSOL on mint. Zero amount probes for a route.
func (r *Router) Buy(ctx context.Context, mint string, amountSOL float64, signer domain.Signer) (domain.Fill, error) {
	return r.race(ctx, domain.SideBuy, mint, amountSOL, signer)
}

// Sell sells amount token atomic units of mint. Zero amount probes for a route.
func (r *Router) Sell(ctx context.Context, mint string, amount float64, signer domain.Signer) (domain.Fill, error) {
	return r.race(ctx, domain.SideSell, mint, amount, signer)
}

type attempt struct {
	index   int
	exec    Execution
	err     error
	latency time.Duration
}

func (r *Router) race(ctx context.Context, side domain.Side, mint string, amount float64, signer domain.Signer) (domain.Fill, error) {
	if mint == "" || amount < 0 {
		return domain.Fill{}, fmt.Errorf("%w: mint=%q amount=%v", ErrInvalidOrder, mint, amount)
	}
	if len(r.adapters) == 0 {
		return domain.Fill{}, &RouteError{Side: side, Mint: mint}
	}

	cancels := make([]context.CancelFunc, len(r.adapters))
	results := make(chan attempt, len(r.adapters))
	for i, adapter := range r.adapters {
		actx, cancel := context.WithCancel(ctx)
		cancels[i] = cancel
		go func(i int, adapter Adapter) {
			start := time.Now()
			exec, err := invoke(actx, adapter, side, mint, amount, signer)
			results <- attempt{index: i, exec: exec, err: err, latency: time.Since(start)}
		}(i, adapter)
	}
	cancelAll := func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
	defer cancelAll()

	failures := make([]*SourceError, len(r.adapters))
	for range r.adapters {
		res := <-results
		source := r.adapters[res.index].Name()

		if res.err != nil {
			observability.RecordRouteAttempt(source, side.String(), "error", res.latency.Seconds())
			failures[res.index] = &SourceError{Source: source, Err: res.err}
			r.logger.Debug().Err(res.err).Str("source", source).Str("mint", mint).Str("side", side.String()).Msg("source attempt failed")
			continue
		}

		// Winner: signal every other attempt; late results are discarded.
		cancelAll()
		observability.RecordRouteAttempt(source, side.String(), "ok", res.latency.Seconds())
		observability.RecordFill(source, side.String())
		r.logger.Info().
			Str("source", source).
			Str("mint", mint).
			Str("side", side.String()).
			Str("tx", res.exec.TxID).
			Dur("latency", res.latency).
			Msg("route won")

		return domain.Fill{
			Mint:      mint,
			Side:      side,
			Source:    source,
			TxID:      res.exec.TxID,
			AmountIn:  res.exec.AmountIn,
			AmountOut: res.exec.AmountOut,
			LatencyMs: res.latency.Milliseconds(),
			Timestamp: r.now().UnixMilli(),
		}, nil
	}

	routeErr := &RouteError{Side: side, Mint: mint, Failures: make([]SourceError, 0, len(failures))}
	for _, f := range failures {
		if f != nil {
			routeErr.Failures = append(routeErr.Failures, *f)
		}
	}
	observability.RecordRouteExhausted(side.String())
	return domain.Fill{}, routeErr
}

func invoke(ctx context.Context, adapter Adapter, side domain.Side, mint string, amount float64, signer domain.Signer) (Execution, error) {
	switch side {
	case domain.SideBuy:
		if b, ok := adapter.(Buyer); ok {
			return b.Buy(ctx, mint, amount, signer)
		}
	case domain.SideSell:
		if s, ok := adapter.(Seller); ok {
			return s.Sell(ctx, mint, amount, signer)
		}
	}
	return Execution{}, fmt.Errorf("%w: %s", ErrUnsupportedSide, side)
}
