// Package monitor supervises one open position until it is fully exited.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/idhash"
	"solana-autotrader/internal/notify"
	"solana-autotrader/internal/observability"
	"solana-autotrader/internal/storage"
)

// DefaultInterval is the price poll period.
const DefaultInterval = 2 * time.Second

// ErrSellFailed marks a sell that did not execute; it is retried next tick.
var ErrSellFailed = errors.New("sell failed")

// PriceSource returns the current USD price of a token.
type PriceSource interface {
	FetchCurrentPrice(ctx context.Context, address string) (float64, error)
}

// Seller executes a sell of amount token atomic units.
type Seller interface {
	Sell(ctx context.Context, mint string, amount float64, signer domain.Signer) (domain.Fill, error)
}

// Config wires a Monitor. Positions, Fills and Notifier are optional.
type Config struct {
	Strategy domain.StrategyConfig
	Signer   domain.Signer
	Prices   PriceSource
	Seller   Seller

	Positions storage.PositionStore
	Fills     storage.FillStore
	Notifier  notify.Notifier
	Logger    zerolog.Logger

	Interval time.Duration
	Now      func() time.Time

	// OnTerminal runs once when the position reaches CLOSED or STOPPED.
	OnTerminal func(domain.Position)
}

// Monitor polls the price of one position and executes its staged exits.
// Tick must be called from a single goroutine; Snapshot is safe from any.
type Monitor struct {
	cfg    Config
	logger zerolog.Logger

	mu  sync.RWMutex
	pos domain.Position
}

// New creates a monitor for pos. The strategy gets its execution defaults.
func New(pos domain.Position, cfg Config) *Monitor {
	cfg.Strategy = cfg.Strategy.WithDefaults()
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if pos.State == "" {
		pos.State = pos.DeriveState(cfg.Strategy.HasStage2())
	}
	return &Monitor{
		cfg: cfg,
		logger: cfg.Logger.With().
			Str("component", "monitor").
			Str("user", pos.UserID).
			Str("mint", pos.Mint).
			Str("position", pos.PositionID).
			Logger(),
		pos: pos,
	}
}

// Snapshot returns a copy of the current position.
func (m *Monitor) Snapshot() domain.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos
}

// Run ticks every interval until the position is terminal or ctx is done.
// Returns the last position snapshot.
func (m *Monitor) Run(ctx context.Context) domain.Position {
	if m.Snapshot().IsTerminal() {
		m.finish(ctx)
		return m.Snapshot()
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			observability.RecordMonitorStopped()
			m.logger.Debug().Msg("monitor cancelled")
			return m.Snapshot()
		case <-ticker.C:
			if m.Tick(ctx) {
				return m.Snapshot()
			}
		}
	}
}

// Tick performs one poll: price lookup, then stage 1, stage 2 and stop-loss
// in that order. Returns true once the position is terminal.
func (m *Monitor) Tick(ctx context.Context) bool {
	pos := m.Snapshot()
	if pos.IsTerminal() {
		return true
	}

	price, err := m.cfg.Prices.FetchCurrentPrice(ctx, pos.Mint)
	if err != nil {
		m.logger.Warn().Err(err).Msg("price lookup failed, retrying next tick")
		return false
	}
	if price <= 0 {
		m.logger.Warn().Float64("price", price).Msg("non-positive price, retrying next tick")
		return false
	}
	if pos.EntryPrice <= 0 {
		// Entry price was unknown at buy time; the first observed price is the baseline.
		pos.EntryPrice = price
		m.update(ctx, pos)
		return false
	}

	change := ChangePercent(pos.EntryPrice, price)

	for _, stage := range checkOrder {
		amount, due := exitDue(&pos, m.cfg.Strategy, stage, change)
		if !due {
			continue
		}
		next, err := m.exit(ctx, pos, stage, amount, price, change)
		if err != nil {
			m.logger.Warn().Err(err).Str("stage", stage).Float64("change_pct", change).Msg("exit failed, retrying next tick")
			m.cfg.Notifier.Notify(ctx, pos.UserID, fmt.Sprintf("%s sell of %s failed: %v. Retrying.", stageLabel(stage), pos.Mint, err))
			return false
		}
		pos = next
		if pos.IsTerminal() {
			break
		}
	}

	if pos.IsTerminal() {
		m.finish(ctx)
		return true
	}
	return false
}

// exit sells amount for stage and returns the updated position.
func (m *Monitor) exit(ctx context.Context, pos domain.Position, stage string, amount, price, change float64) (domain.Position, error) {
	var fill domain.Fill
	sold := 0.0
	if amount > 0 {
		var err error
		fill, err = m.cfg.Seller.Sell(ctx, pos.Mint, amount, m.cfg.Signer)
		if err != nil {
			return pos, fmt.Errorf("%w: %w", ErrSellFailed, err)
		}
		sold = amount
		if fill.AmountIn > 0 && fill.AmountIn < amount {
			sold = fill.AmountIn
		}
	}

	nowMs := m.cfg.Now().UnixMilli()
	applyExit(&pos, m.cfg.Strategy, stage, sold, nowMs)
	m.update(ctx, pos)

	if amount > 0 {
		fill.UserID = pos.UserID
		fill.PositionID = pos.PositionID
		fill.Stage = stage
		fill.Price = price
		if fill.Timestamp == 0 {
			fill.Timestamp = nowMs
		}
		fill.FillID = idhash.ComputeFillID(pos.PositionID, stage, fill.TxID)
		m.recordFill(ctx, fill)
	}

	m.logger.Info().
		Str("stage", stage).
		Float64("sold", sold).
		Float64("price", price).
		Float64("change_pct", change).
		Str("state", string(pos.State)).
		Msg("exit executed")
	m.cfg.Notifier.Notify(ctx, pos.UserID, fmt.Sprintf("%s on %s at %+.2f%%: sold %.0f units (tx %s).",
		stageLabel(stage), pos.Mint, change, sold, fill.TxID))

	return pos, nil
}

// update stores pos as the current snapshot and persists it.
func (m *Monitor) update(ctx context.Context, pos domain.Position) {
	m.mu.Lock()
	m.pos = pos
	m.mu.Unlock()

	if m.cfg.Positions == nil {
		return
	}
	if err := m.cfg.Positions.Update(ctx, &pos); err != nil {
		m.logger.Error().Err(err).Msg("persist position failed")
	}
}

func (m *Monitor) recordFill(ctx context.Context, fill domain.Fill) {
	if m.cfg.Fills == nil {
		return
	}
	if err := m.cfg.Fills.Insert(ctx, &fill); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		m.logger.Error().Err(err).Str("tx", fill.TxID).Msg("record fill failed")
	}
}

func (m *Monitor) finish(ctx context.Context) {
	pos := m.Snapshot()
	observability.RecordPositionClosed(string(pos.State))
	m.logger.Info().Str("state", string(pos.State)).Msg("position finished")
	if pos.State == domain.StateClosed {
		m.cfg.Notifier.Notify(ctx, pos.UserID, fmt.Sprintf("Position on %s closed.", pos.Mint))
	}
	if m.cfg.OnTerminal != nil {
		m.cfg.OnTerminal(pos)
	}
}

func stageLabel(stage string) string {
	switch stage {
	case domain.StageOne:
		return "Take-profit 1"
	case domain.StageTwo:
		return "Take-profit 2"
	case domain.StageStopLoss:
		return "Stop-loss"
	}
	return stage
}
