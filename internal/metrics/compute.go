package metrics

import (
	"math"
	"sort"

	"solana-autotrader/internal/domain"
)

// Summary aggregates realized outcomes of a user's closed positions.
// Outcomes are relative returns (0.25 = +25%).
type Summary struct {
	UserID string `json:"user"`

	// Counts
	TotalTrades  int     `json:"totalTrades"`
	TotalTokens  int     `json:"totalTokens"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Stopped      int     `json:"stopped"`
	WinRate      float64 `json:"winRate"`
	TokenWinRate float64 `json:"tokenWinRate"`

	// SOL totals
	SpentSOL    float64 `json:"spentSol"`
	ReceivedSOL float64 `json:"receivedSol"`
	PnLSOL      float64 `json:"pnlSol"`

	// Outcome distribution
	OutcomeMean   float64 `json:"outcomeMean"`
	OutcomeMedian float64 `json:"outcomeMedian"`
	OutcomeP10    float64 `json:"outcomeP10"`
	OutcomeP90    float64 `json:"outcomeP90"`
	OutcomeMin    float64 `json:"outcomeMin"`
	OutcomeMax    float64 `json:"outcomeMax"`
	OutcomeStddev float64 `json:"outcomeStddev"`

	// Order-dependent
	MaxDrawdown          float64 `json:"maxDrawdown"`
	MaxConsecutiveLosses int     `json:"maxConsecutiveLosses"`
}

// computeFromTrades calculates all metrics from trades in chronological
// order.
func computeFromTrades(trades []Trade) Summary {
	n := len(trades)
	if n == 0 {
		return Summary{}
	}

	var s Summary
	outcomes := make([]float64, n)
	for i, t := range trades {
		o := t.Outcome()
		outcomes[i] = o
		if o > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		if t.State == domain.StateStopped {
			s.Stopped++
		}
		s.SpentSOL += t.SpentSOL
		s.ReceivedSOL += t.ReceivedSOL
	}

	sorted := make([]float64, n)
	copy(sorted, outcomes)
	sort.Float64s(sorted)

	mean := computeMean(outcomes)
	s.TotalTrades = n
	s.TotalTokens, s.TokenWinRate = computeTokenWinRate(trades)
	s.WinRate = computeWinRate(s.Wins, n)
	s.PnLSOL = s.ReceivedSOL - s.SpentSOL

	s.OutcomeMean = mean
	s.OutcomeMedian = computePercentile(sorted, 0.50)
	s.OutcomeP10 = computePercentile(sorted, 0.10)
	s.OutcomeP90 = computePercentile(sorted, 0.90)
	s.OutcomeMin = sorted[0]
	s.OutcomeMax = sorted[n-1]
	s.OutcomeStddev = computeStddev(outcomes, mean)

	s.MaxDrawdown = computeMaxDrawdown(outcomes)
	s.MaxConsecutiveLosses = computeMaxConsecutiveLosses(outcomes)
	return s
}

// computeTokenWinRate groups trades by mint. A token wins when at least one
// of its trades has a positive outcome.
func computeTokenWinRate(trades []Trade) (int, float64) {
	if len(trades) == 0 {
		return 0, 0
	}

	positive := make(map[string]bool)
	for _, t := range trades {
		positive[t.Mint] = positive[t.Mint] || t.Outcome() > 0
	}

	winning := 0
	for _, ok := range positive {
		if ok {
			winning++
		}
	}
	return len(positive), float64(winning) / float64(len(positive))
}

func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func computeMean(outcomes []float64) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range outcomes {
		sum += o
	}
	return sum / float64(len(outcomes))
}

// computeStddev is the sample standard deviation (n-1 denominator).
func computeStddev(outcomes []float64, mean float64) float64 {
	n := len(outcomes)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, o := range outcomes {
		diff := o - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation. sorted must be ASC;
// p is a fraction (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown is the worst peak-to-trough drop of cumulative
// outcomes. Outcomes must be in chronological order.
func computeMaxDrawdown(outcomes []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, o := range outcomes {
		cumulative += o
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of outcome <= 0.
func computeMaxConsecutiveLosses(outcomes []float64) int {
	maxStreak := 0
	streak := 0
	for _, o := range outcomes {
		if o <= 0 {
			streak++
			if streak > maxStreak {
				maxStreak = streak
			}
		} else {
			streak = 0
		}
	}
	return maxStreak
}
