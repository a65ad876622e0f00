package domain

import (
	"errors"
	"fmt"
)

// Defaults applied to unset execution parameters.
const (
	DefaultBuyAmount       = 0.01 // SOL
	DefaultMaxActiveTrades = 1
	DefaultProfitTarget1   = 20.0
	DefaultSellPercent1    = 50.0
	DefaultProfitTarget2   = 50.0
	DefaultSellPercent2    = 50.0
	DefaultStopLossPercent = 15.0

	// FastListingMaxAge is the implicit MaxAge (minutes) when FastListing is set
	// and MaxAge is not.
	FastListingMaxAge = 60.0
)

// ErrInvalidStrategy is returned by StrategyConfig.Validate.
var ErrInvalidStrategy = errors.New("invalid strategy")

// StrategyConfig is a user's filtering thresholds and execution parameters.
// A nil or zero threshold imposes no constraint.
type StrategyConfig struct {
	// Thresholds
	MinVolume    *float64 `json:"minVolume,omitempty"`    // 24h volume, USD
	MinHolders   *float64 `json:"minHolders,omitempty"`   // holder count
	MinAge       *float64 `json:"minAge,omitempty"`       // listing age, minutes
	MaxAge       *float64 `json:"maxAge,omitempty"`       // listing age, minutes
	MinMarketCap *float64 `json:"minMarketCap,omitempty"` // USD
	MinLiquidity *float64 `json:"minLiquidity,omitempty"` // USD
	MinPrice     *float64 `json:"minPrice,omitempty"`     // USD
	MaxPrice     *float64 `json:"maxPrice,omitempty"`     // USD

	// Flags
	OnlyVerified bool `json:"onlyVerified,omitempty"`
	FastListing  bool `json:"fastListing,omitempty"`
	Enabled      bool `json:"enabled"`

	// Execution
	BuyAmount       float64  `json:"buyAmount,omitempty"` // SOL per position
	MaxActiveTrades int      `json:"maxActiveTrades,omitempty"`
	ProfitTarget1   float64  `json:"profitTarget1,omitempty"` // percent
	SellPercent1    float64  `json:"sellPercent1,omitempty"`  // percent of original amount
	ProfitTarget2   *float64 `json:"profitTarget2,omitempty"` // nil: no second stage
	SellPercent2    *float64 `json:"sellPercent2,omitempty"`
	StopLossPercent float64  `json:"stopLossPercent,omitempty"` // sign ignored
}

// WithDefaults returns a copy with unset execution parameters filled in.
// When no profit target is configured at all, both default stages apply;
// a user-set first target never gets an implicit second one.
func (c StrategyConfig) WithDefaults() StrategyConfig {
	out := c
	if out.BuyAmount <= 0 {
		out.BuyAmount = DefaultBuyAmount
	}
	if out.MaxActiveTrades <= 0 {
		out.MaxActiveTrades = DefaultMaxActiveTrades
	}
	if out.ProfitTarget1 <= 0 && out.ProfitTarget2 == nil {
		out.ProfitTarget1 = DefaultProfitTarget1
		pt2, sp2 := DefaultProfitTarget2, DefaultSellPercent2
		out.ProfitTarget2 = &pt2
		if out.SellPercent2 == nil {
			out.SellPercent2 = &sp2
		}
	}
	if out.SellPercent1 <= 0 {
		if out.HasStage2() {
			out.SellPercent1 = DefaultSellPercent1
		} else {
			out.SellPercent1 = 100
		}
	}
	if out.HasStage2() && (out.SellPercent2 == nil || *out.SellPercent2 <= 0) {
		rest := 100 - out.SellPercent1
		if rest < 0 {
			rest = 0
		}
		out.SellPercent2 = &rest
	}
	if out.StopLossPercent == 0 {
		out.StopLossPercent = DefaultStopLossPercent
	}
	if out.FastListing && (out.MaxAge == nil || *out.MaxAge <= 0) {
		maxAge := FastListingMaxAge
		out.MaxAge = &maxAge
	}
	return out
}

// HasStage2 reports whether a second take-profit stage is configured.
func (c StrategyConfig) HasStage2() bool {
	return c.ProfitTarget2 != nil && *c.ProfitTarget2 > 0
}

// Stage2Percent returns the stage-2 sell percent, or 0 when unset.
func (c StrategyConfig) Stage2Percent() float64 {
	if c.SellPercent2 == nil {
		return 0
	}
	return *c.SellPercent2
}

// Validate checks execution parameters for values that cannot be traded.
func (c StrategyConfig) Validate() error {
	if c.BuyAmount < 0 {
		return fmt.Errorf("%w: buyAmount must be >= 0", ErrInvalidStrategy)
	}
	if c.MaxActiveTrades < 0 {
		return fmt.Errorf("%w: maxActiveTrades must be >= 0", ErrInvalidStrategy)
	}
	if c.SellPercent1 < 0 || c.SellPercent1 > 100 {
		return fmt.Errorf("%w: sellPercent1 must be within [0, 100]", ErrInvalidStrategy)
	}
	if c.SellPercent2 != nil && (*c.SellPercent2 < 0 || *c.SellPercent2 > 100) {
		return fmt.Errorf("%w: sellPercent2 must be within [0, 100]", ErrInvalidStrategy)
	}
	if c.SellPercent1+c.Stage2Percent() > 100 {
		return fmt.Errorf("%w: sell percents exceed 100", ErrInvalidStrategy)
	}
	if c.HasStage2() && *c.ProfitTarget2 < c.ProfitTarget1 {
		return fmt.Errorf("%w: profitTarget2 below profitTarget1", ErrInvalidStrategy)
	}
	return nil
}
