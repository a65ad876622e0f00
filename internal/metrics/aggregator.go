package metrics

import (
	"context"
	"errors"
	"fmt"

	"solana-autotrader/internal/storage"
)

// ErrNoTrades is returned when a user has no closed positions.
var ErrNoTrades = errors.New("no closed trades")

// Aggregator computes per-user trade summaries from the position and fill
// stores.
type Aggregator struct {
	positions storage.PositionStore
	fills     storage.FillStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(positions storage.PositionStore, fills storage.FillStore) *Aggregator {
	return &Aggregator{positions: positions, fills: fills}
}

// UserSummary summarizes the user's closed positions with fills in
// [start, end] ms. Returns ErrNoTrades if nothing closed.
func (a *Aggregator) UserSummary(ctx context.Context, userID string, start, end int64) (Summary, error) {
	positions, err := a.positions.ListByUser(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("list positions: %w", err)
	}
	fills, err := a.fills.GetByUser(ctx, userID, start, end)
	if err != nil {
		return Summary{}, fmt.Errorf("list fills: %w", err)
	}

	trades := buildTrades(positions, fills)
	// Keep positions closed inside the window.
	inWindow := trades[:0]
	for _, t := range trades {
		if t.ClosedAt >= start && t.ClosedAt <= end {
			inWindow = append(inWindow, t)
		}
	}
	if len(inWindow) == 0 {
		return Summary{UserID: userID}, ErrNoTrades
	}

	s := computeFromTrades(inWindow)
	s.UserID = userID
	return s, nil
}
