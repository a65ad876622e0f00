// Package filter evaluates token candidates against a user's strategy.
package filter

import (
	"fmt"

	"solana-autotrader/internal/domain"
)

// Rejection describes one threshold a candidate failed.
type Rejection struct {
	Field     string
	Value     float64
	Threshold float64
}

func (r Rejection) String() string {
	return fmt.Sprintf("%s=%g vs %g", r.Field, r.Value, r.Threshold)
}

// check is one threshold. value returns ok=false when the token field is unavailable.
type check struct {
	field     string
	threshold func(cfg *domain.StrategyConfig) *float64
	value     func(c *domain.TokenCandidate) (float64, bool)
	max       bool
}

var checks = []check{
	{field: "volume24h", threshold: func(c *domain.StrategyConfig) *float64 { return c.MinVolume }, value: func(t *domain.TokenCandidate) (float64, bool) { return deref(t.Volume24hUSD) }},
	{field: "holders", threshold: func(c *domain.StrategyConfig) *float64 { return c.MinHolders }, value: holders},
	{field: "ageMinutes", threshold: func(c *domain.StrategyConfig) *float64 { return c.MinAge }, value: func(t *domain.TokenCandidate) (float64, bool) { return deref(t.AgeMinutes) }},
	{field: "ageMinutes", threshold: func(c *domain.StrategyConfig) *float64 { return c.MaxAge }, value: func(t *domain.TokenCandidate) (float64, bool) { return deref(t.AgeMinutes) }, max: true},
	{field: "marketCap", threshold: func(c *domain.StrategyConfig) *float64 { return c.MinMarketCap }, value: func(t *domain.TokenCandidate) (float64, bool) { return deref(t.MarketCapUSD) }},
	{field: "liquidity", threshold: func(c *domain.StrategyConfig) *float64 { return c.MinLiquidity }, value: func(t *domain.TokenCandidate) (float64, bool) { return deref(t.LiquidityUSD) }},
	{field: "price", threshold: func(c *domain.StrategyConfig) *float64 { return c.MinPrice }, value: func(t *domain.TokenCandidate) (float64, bool) { return deref(t.PriceUSD) }},
	{field: "price", threshold: func(c *domain.StrategyConfig) *float64 { return c.MaxPrice }, value: func(t *domain.TokenCandidate) (float64, bool) { return deref(t.PriceUSD) }, max: true},
}

// Filter returns the candidates that pass every configured threshold, in input order.
// A threshold is skipped when unset or zero in cfg, or when the token does not
// report the field. A disabled strategy passes nothing.
func Filter(tokens []domain.TokenCandidate, cfg domain.StrategyConfig) []domain.TokenCandidate {
	if !cfg.Enabled {
		return nil
	}
	out := make([]domain.TokenCandidate, 0, len(tokens))
	for i := range tokens {
		if accept(&tokens[i], &cfg, nil) {
			out = append(out, tokens[i])
		}
	}
	return out
}

// Accept reports whether a single candidate passes cfg.
func Accept(token domain.TokenCandidate, cfg domain.StrategyConfig) bool {
	return cfg.Enabled && accept(&token, &cfg, nil)
}

// Explain lists every threshold the candidate fails. Empty means it passes
// (ignoring Enabled).
func Explain(token domain.TokenCandidate, cfg domain.StrategyConfig) []Rejection {
	var rejections []Rejection
	accept(&token, &cfg, &rejections)
	return rejections
}

// accept evaluates all checks. With a nil sink it stops at the first failure.
func accept(t *domain.TokenCandidate, cfg *domain.StrategyConfig, sink *[]Rejection) bool {
	ok := true
	for _, ck := range checks {
		threshold := ck.threshold(cfg)
		if threshold == nil || *threshold == 0 {
			continue
		}
		v, has := ck.value(t)
		if !has {
			continue
		}
		failed := v < *threshold
		if ck.max {
			failed = v > *threshold
		}
		if !failed {
			continue
		}
		ok = false
		if sink == nil {
			return false
		}
		*sink = append(*sink, Rejection{Field: ck.field, Value: v, Threshold: *threshold})
	}

	if cfg.OnlyVerified && !t.IsVerified() {
		ok = false
		if sink != nil {
			*sink = append(*sink, Rejection{Field: "verified", Value: 0, Threshold: 1})
		}
	}
	return ok
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

func holders(t *domain.TokenCandidate) (float64, bool) {
	if t.Holders == nil {
		return 0, false
	}
	return float64(*t.Holders), true
}
