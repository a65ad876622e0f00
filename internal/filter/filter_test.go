package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-autotrader/internal/domain"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func boolPtr(v bool) *bool   { return &v }

func token(addr string) domain.TokenCandidate {
	return domain.TokenCandidate{
		Address:      addr,
		PriceUSD:     f64(0.002),
		MarketCapUSD: f64(80_000),
		LiquidityUSD: f64(5_000),
		Volume24hUSD: f64(1_200),
		Holders:      i64(75),
		AgeMinutes:   f64(30),
		Verified:     boolPtr(false),
	}
}

func TestFilter_Disabled(t *testing.T) {
	got := Filter([]domain.TokenCandidate{token("a")}, domain.StrategyConfig{Enabled: false})
	assert.Empty(t, got)
}

func TestFilter_UnsetThresholdsAreInert(t *testing.T) {
	cfg := domain.StrategyConfig{Enabled: true, MinVolume: f64(0)}

	variants := []domain.TokenCandidate{token("a"), token("b"), token("c"), token("d")}
	variants[1].Volume24hUSD = f64(0)
	variants[2].MarketCapUSD = nil
	variants[3].Holders = i64(1)
	variants[3].PriceUSD = f64(1e9)

	got := Filter(variants, cfg)
	assert.Len(t, got, len(variants))
}

func TestFilter_MinHolders(t *testing.T) {
	cfg := domain.StrategyConfig{Enabled: true, MinHolders: f64(50)}

	low := token("low")
	low.Holders = i64(49)
	unknown := token("unknown")
	unknown.Holders = nil

	got := Filter([]domain.TokenCandidate{token("ok"), low, unknown}, cfg)
	require.Len(t, got, 2)
	for _, tok := range got {
		if tok.Holders != nil {
			assert.GreaterOrEqual(t, *tok.Holders, int64(50))
		}
	}
	assert.Equal(t, "ok", got[0].Address)
	assert.Equal(t, "unknown", got[1].Address)
}

func TestFilter_MaxThresholds(t *testing.T) {
	cfg := domain.StrategyConfig{Enabled: true, MaxAge: f64(60), MaxPrice: f64(0.01)}

	old := token("old")
	old.AgeMinutes = f64(61)
	pricey := token("pricey")
	pricey.PriceUSD = f64(0.02)
	edge := token("edge")
	edge.AgeMinutes = f64(60)

	got := Filter([]domain.TokenCandidate{old, pricey, edge}, cfg)
	require.Len(t, got, 1)
	assert.Equal(t, "edge", got[0].Address)
}

func TestFilter_OnlyVerified(t *testing.T) {
	cfg := domain.StrategyConfig{Enabled: true, OnlyVerified: true}

	verified := token("v")
	verified.Verified = boolPtr(true)
	unknown := token("u")
	unknown.Verified = nil

	got := Filter([]domain.TokenCandidate{token("no"), verified, unknown}, cfg)
	require.Len(t, got, 1)
	assert.Equal(t, "v", got[0].Address)
}

func TestFilter_PreservesOrder(t *testing.T) {
	cfg := domain.StrategyConfig{Enabled: true, MinLiquidity: f64(1000)}
	in := []domain.TokenCandidate{token("c"), token("a"), token("b")}

	got := Filter(in, cfg)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{got[0].Address, got[1].Address, got[2].Address})
}

func TestExplain(t *testing.T) {
	cfg := domain.StrategyConfig{Enabled: true, MinMarketCap: f64(100_000), MinLiquidity: f64(10_000)}

	rejections := Explain(token("a"), cfg)
	require.Len(t, rejections, 2)
	assert.Equal(t, "marketCap", rejections[0].Field)
	assert.Equal(t, "liquidity", rejections[1].Field)
	assert.False(t, Accept(token("a"), cfg))

	assert.Empty(t, Explain(token("a"), domain.StrategyConfig{Enabled: true}))
}
