package metrics

import (
	"sort"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/solana"
)

// Trade is the realized result of one terminal position.
type Trade struct {
	PositionID  string
	Mint        string
	OpenedAt    int64   // ms
	ClosedAt    int64   // ms
	SpentSOL    float64 // entry fill amount in
	ReceivedSOL float64 // sum of sell fill amounts out
	State       domain.PositionState
}

// Outcome is the relative return: (received - spent) / spent.
func (t Trade) Outcome() float64 {
	if t.SpentSOL <= 0 {
		return 0
	}
	return (t.ReceivedSOL - t.SpentSOL) / t.SpentSOL
}

// buildTrades joins terminal positions with their fills. Positions without
// an entry fill fall back to the recorded buy amount. Result is ordered by
// ClosedAt ASC, PositionID ASC.
func buildTrades(positions []*domain.Position, fills []*domain.Fill) []Trade {
	byPosition := make(map[string][]*domain.Fill)
	for _, f := range fills {
		if f.PositionID != "" {
			byPosition[f.PositionID] = append(byPosition[f.PositionID], f)
		}
	}

	trades := make([]Trade, 0, len(positions))
	for _, p := range positions {
		if !p.IsTerminal() {
			continue
		}
		t := Trade{
			PositionID: p.PositionID,
			Mint:       p.Mint,
			OpenedAt:   p.OpenedAt,
			SpentSOL:   p.BuyAmount,
			State:      p.State,
		}
		if p.ClosedAt != nil {
			t.ClosedAt = *p.ClosedAt
		} else {
			t.ClosedAt = p.UpdatedAt
		}

		for _, f := range byPosition[p.PositionID] {
			switch f.Side {
			case domain.SideBuy:
				if f.AmountIn > 0 {
					t.SpentSOL = f.AmountIn
				}
			case domain.SideSell:
				t.ReceivedSOL += f.AmountOut / solana.LamportsPerSOL
			}
		}
		trades = append(trades, t)
	}

	sort.Slice(trades, func(i, j int) bool {
		if trades[i].ClosedAt != trades[j].ClosedAt {
			return trades[i].ClosedAt < trades[j].ClosedAt
		}
		return trades[i].PositionID < trades[j].PositionID
	})
	return trades
}
