package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `{"pairs":[
 {"chainId":"solana","pairAddress":"P1","baseToken":{"address":"MintA","name":"Alpha","symbol":"ALP"},
  "priceUsd":"0.0015","marketCap":50000,"liquidity":{"usd":12000},"volume":{"h24":90000},
  "pairCreatedAt":1699999400000,"labels":["verified"]},
 {"chainId":"solana","pairAddress":"P2","baseToken":{"address":"MintA","name":"Alpha","symbol":"ALP"},
  "priceUsd":"0.0016","liquidity":{"usd":30000},"fdv":70000},
 {"chainId":"ethereum","pairAddress":"P3","baseToken":{"address":"MintE","name":"Eth","symbol":"E"},
  "priceUsd":"1","liquidity":{"usd":50000}},
 {"chainId":"solana","pairAddress":"P4","baseToken":{"address":"MintS","name":"Total Scam","symbol":"SCM"},
  "priceUsd":"1","liquidity":{"usd":50000}},
 {"chainId":"solana","pairAddress":"P5","baseToken":{"address":"MintL","name":"Low","symbol":"LOW"},
  "priceUsd":"1","liquidity":{"usd":500}},
 {"chainId":"solana","pairAddress":"P6","baseToken":{"address":"MintB","name":"Beta","symbol":"BET"},
  "priceUsd":"2.5"}
]}`

func TestDexScreener_FetchCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/search", r.URL.Path)
		assert.Equal(t, "sol", r.URL.Query().Get("q"))
		w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	now := time.UnixMilli(1_700_000_000_000)
	d := NewDexScreener(WithDexBaseURL(srv.URL), WithDexClock(func() time.Time { return now }))

	got, err := d.FetchCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	a := got[0]
	assert.Equal(t, "MintA", a.Address)
	assert.Equal(t, "P2", a.PairAddress, "most liquid pair wins")
	require.NotNil(t, a.PriceUSD)
	assert.InDelta(t, 0.0016, *a.PriceUSD, 1e-12)
	require.NotNil(t, a.MarketCapUSD)
	assert.Equal(t, 70000.0, *a.MarketCapUSD, "fdv fallback")
	assert.Nil(t, a.Verified)

	b := got[1]
	assert.Equal(t, "MintB", b.Address)
	assert.Nil(t, b.LiquidityUSD)
	assert.Nil(t, b.AgeMinutes)
}

func TestDexScreener_AgeAndVerifiedFromPair(t *testing.T) {
	body := `{"pairs":[{"chainId":"solana","pairAddress":"P1","baseToken":{"address":"MintA","name":"A","symbol":"A"},
	 "priceUsd":"1","liquidity":{"usd":5000},"pairCreatedAt":1699999400000,"labels":["Verified"]}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	now := time.UnixMilli(1_700_000_000_000)
	d := NewDexScreener(WithDexBaseURL(srv.URL), WithDexClock(func() time.Time { return now }))

	got, err := d.FetchCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].AgeMinutes)
	assert.InDelta(t, 10.0, *got[0].AgeMinutes, 1e-9)
	assert.True(t, got[0].IsVerified())
}

func TestDexScreener_AllQueriesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := NewDexScreener(WithDexBaseURL(srv.URL), WithSearchQueries("a", "b"))
	_, err := d.FetchCandidates(context.Background())
	assert.ErrorContains(t, err, "429")
}

func TestDexScreener_FetchCurrentPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/latest/dex/tokens/MintA":
			w.Write([]byte(`{"pairs":[
			 {"chainId":"solana","baseToken":{"address":"MintA"},"priceUsd":"0.5","liquidity":{"usd":100}},
			 {"chainId":"solana","baseToken":{"address":"MintA"},"priceUsd":"0.6","liquidity":{"usd":900}},
			 {"chainId":"solana","baseToken":{"address":"Other"},"priceUsd":"9","liquidity":{"usd":99999}}
			]}`))
		default:
			w.Write([]byte(`{"pairs":null}`))
		}
	}))
	defer srv.Close()

	d := NewDexScreener(WithDexBaseURL(srv.URL))

	p, err := d.FetchCurrentPrice(context.Background(), "MintA")
	require.NoError(t, err)
	assert.Equal(t, 0.6, p)

	_, err = d.FetchCurrentPrice(context.Background(), "Missing")
	assert.True(t, errors.Is(err, ErrPriceUnavailable))
}
