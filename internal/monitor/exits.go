package monitor

import (
	"math"

	"solana-autotrader/internal/domain"
)

// checkOrder is the fixed order exits are evaluated within one tick.
var checkOrder = []string{domain.StageOne, domain.StageTwo, domain.StageStopLoss}

// ChangePercent returns the move from entry to current in percent.
func ChangePercent(entry, current float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (current - entry) / entry * 100
}

// exitDue reports whether stage should fire at changePct and how many
// atomic units to sell. Take-profit amounts are fractions of the original
// base amount; stop-loss sells whatever stage 1 and 2 left.
func exitDue(p *domain.Position, cfg domain.StrategyConfig, stage string, changePct float64) (float64, bool) {
	if p.IsTerminal() || p.Stopped {
		return 0, false
	}

	switch stage {
	case domain.StageOne:
		if p.ExitedStage1 || changePct < cfg.ProfitTarget1 {
			return 0, false
		}
		return clampSell(p.BaseAmount*cfg.SellPercent1/100, p.Remaining()), true

	case domain.StageTwo:
		if !cfg.HasStage2() || p.ExitedStage2 || changePct < *cfg.ProfitTarget2 {
			return 0, false
		}
		return clampSell(p.BaseAmount*cfg.Stage2Percent()/100, p.Remaining()), true

	case domain.StageStopLoss:
		if changePct > -math.Abs(cfg.StopLossPercent) {
			return 0, false
		}
		return math.Floor(p.Remaining()), true
	}
	return 0, false
}

// clampSell rounds down to whole atomic units and never exceeds what is left.
func clampSell(amount, remaining float64) float64 {
	amount = math.Floor(amount)
	if amount > remaining {
		amount = math.Floor(remaining)
	}
	if amount < 0 {
		return 0
	}
	return amount
}

// applyExit marks stage done with sold units and recomputes the state.
func applyExit(p *domain.Position, cfg domain.StrategyConfig, stage string, sold float64, nowMs int64) {
	switch stage {
	case domain.StageOne:
		p.ExitedStage1 = true
		p.Stage1Sold = sold
	case domain.StageTwo:
		p.ExitedStage2 = true
		p.Stage2Sold = sold
	case domain.StageStopLoss:
		p.Stopped = true
		p.StopSold = sold
	}
	p.State = p.DeriveState(cfg.HasStage2())
	p.UpdatedAt = nowMs
	if p.IsTerminal() && p.ClosedAt == nil {
		closed := nowMs
		p.ClosedAt = &closed
	}
}
