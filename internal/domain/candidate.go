package domain

// TokenCandidate is a normalized market snapshot of a token evaluated against
// a strategy. Recomputed every poll cycle and never persisted.
// Numeric fields are nil when the feed did not report them.
type TokenCandidate struct {
	Address     string // token mint address, unique key
	Symbol      string
	Name        string
	PairAddress string // DEX pair address (may be empty)

	PriceUSD     *float64
	MarketCapUSD *float64
	LiquidityUSD *float64
	Volume24hUSD *float64
	Holders      *int64
	AgeMinutes   *float64 // derived from CreatedAtMs relative to fetch time
	Verified     *bool

	CreatedAtMs *int64 // pair creation timestamp (ms)
}

// AgeMinutesAt derives listing age in minutes from a creation timestamp.
// Returns nil when the timestamp is unknown or lies in the future.
func AgeMinutesAt(createdAtMs *int64, nowMs int64) *float64 {
	if createdAtMs == nil || *createdAtMs <= 0 || *createdAtMs > nowMs {
		return nil
	}
	age := float64(nowMs-*createdAtMs) / 60000.0
	return &age
}

// IsVerified reports whether the candidate is known to be verified.
func (c *TokenCandidate) IsVerified() bool {
	return c.Verified != nil && *c.Verified
}
