package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solana-autotrader/internal/domain"
)

// Default DexScreener configuration.
const (
	DefaultDexScreenerURL = "https://api.dexscreener.com"
	DefaultSearchQuery    = "sol"
	DefaultMinLiquidity   = 1000.0 // USD, pairs below are never surfaced
	dexTimeout            = 15 * time.Second
	solanaChainID         = "solana"
)

// DexScreener implements PriceFeed over the DexScreener public API.
type DexScreener struct {
	baseURL      string
	client       *http.Client
	queries      []string
	minLiquidity float64
	excluded     []string // lower-case name/symbol substrings
	now          func() time.Time
}

// DexOption configures DexScreener.
type DexOption func(*DexScreener)

// WithDexBaseURL sets the API base URL.
func WithDexBaseURL(u string) DexOption {
	return func(d *DexScreener) {
		d.baseURL = strings.TrimRight(u, "/")
	}
}

// WithDexHTTPClient sets custom http.Client.
func WithDexHTTPClient(client *http.Client) DexOption {
	return func(d *DexScreener) {
		d.client = client
	}
}

// WithSearchQueries sets the search terms fetched each refresh.
func WithSearchQueries(queries ...string) DexOption {
	return func(d *DexScreener) {
		d.queries = queries
	}
}

// WithMinLiquidity sets the pool liquidity floor applied before strategies.
func WithMinLiquidity(usd float64) DexOption {
	return func(d *DexScreener) {
		d.minLiquidity = usd
	}
}

// WithExcludedTerms drops tokens whose name or symbol contains any term.
func WithExcludedTerms(terms ...string) DexOption {
	return func(d *DexScreener) {
		d.excluded = make([]string, 0, len(terms))
		for _, t := range terms {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				d.excluded = append(d.excluded, t)
			}
		}
	}
}

// WithDexClock overrides the time source used for listing age.
func WithDexClock(now func() time.Time) DexOption {
	return func(d *DexScreener) {
		d.now = now
	}
}

// NewDexScreener creates a DexScreener feed.
func NewDexScreener(opts ...DexOption) *DexScreener {
	d := &DexScreener{
		baseURL:      DefaultDexScreenerURL,
		client:       &http.Client{Timeout: dexTimeout},
		queries:      []string{DefaultSearchQuery},
		minLiquidity: DefaultMinLiquidity,
		excluded:     []string{"scam"},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// dexPair is the subset of a DexScreener pair the engine reads.
type dexPair struct {
	ChainID     string `json:"chainId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD  string   `json:"priceUsd"`
	MarketCap *float64 `json:"marketCap"`
	FDV       *float64 `json:"fdv"`
	Liquidity *struct {
		USD *float64 `json:"usd"`
	} `json:"liquidity"`
	Volume *struct {
		H24 *float64 `json:"h24"`
	} `json:"volume"`
	PairCreatedAt *int64   `json:"pairCreatedAt"`
	Holders       *int64   `json:"holders,omitempty"`
	Labels        []string `json:"labels,omitempty"`
}

type dexPairsResponse struct {
	Pairs []dexPair `json:"pairs"`
}

func (p *dexPair) liquidityUSD() *float64 {
	if p.Liquidity == nil {
		return nil
	}
	return p.Liquidity.USD
}

// FetchCandidates searches every configured query and returns one candidate
// per token, taken from its most liquid Solana pair.
func (d *DexScreener) FetchCandidates(ctx context.Context) ([]domain.TokenCandidate, error) {
	nowMs := d.now().UnixMilli()
	best := make(map[string]*dexPair)
	order := make([]string, 0)
	var lastErr error
	succeeded := 0

	for _, q := range d.queries {
		var resp dexPairsResponse
		endpoint := fmt.Sprintf("%s/latest/dex/search?q=%s", d.baseURL, url.QueryEscape(q))
		if err := d.get(ctx, endpoint, &resp); err != nil {
			lastErr = err
			continue
		}
		succeeded++

		for i := range resp.Pairs {
			p := &resp.Pairs[i]
			if !d.accept(p) {
				continue
			}
			addr := p.BaseToken.Address
			cur, ok := best[addr]
			if !ok {
				order = append(order, addr)
				best[addr] = p
				continue
			}
			if liq(p) > liq(cur) {
				best[addr] = p
			}
		}
	}
	if succeeded == 0 && lastErr != nil {
		return nil, lastErr
	}

	out := make([]domain.TokenCandidate, 0, len(order))
	for _, addr := range order {
		out = append(out, toCandidate(best[addr], nowMs))
	}
	return out, nil
}

// FetchCurrentPrice returns the USD price from the token's most liquid Solana pair.
func (d *DexScreener) FetchCurrentPrice(ctx context.Context, address string) (float64, error) {
	var resp dexPairsResponse
	endpoint := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, url.PathEscape(address))
	if err := d.get(ctx, endpoint, &resp); err != nil {
		return 0, err
	}

	var chosen *dexPair
	for i := range resp.Pairs {
		p := &resp.Pairs[i]
		if !strings.EqualFold(p.ChainID, solanaChainID) || p.BaseToken.Address != address {
			continue
		}
		if parsePrice(p.PriceUSD) == nil {
			continue
		}
		if chosen == nil || liq(p) > liq(chosen) {
			chosen = p
		}
	}
	if chosen == nil {
		return 0, fmt.Errorf("%w: %s", ErrPriceUnavailable, address)
	}
	return *parsePrice(chosen.PriceUSD), nil
}

func (d *DexScreener) accept(p *dexPair) bool {
	if !strings.EqualFold(p.ChainID, solanaChainID) || p.BaseToken.Address == "" {
		return false
	}
	if l := p.liquidityUSD(); l != nil && *l <= d.minLiquidity {
		return false
	}
	name := strings.ToLower(p.BaseToken.Name + " " + p.BaseToken.Symbol)
	for _, term := range d.excluded {
		if strings.Contains(name, term) {
			return false
		}
	}
	return true
}

func (d *DexScreener) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func toCandidate(p *dexPair, nowMs int64) domain.TokenCandidate {
	c := domain.TokenCandidate{
		Address:      p.BaseToken.Address,
		Symbol:       p.BaseToken.Symbol,
		Name:         p.BaseToken.Name,
		PairAddress:  p.PairAddress,
		PriceUSD:     parsePrice(p.PriceUSD),
		MarketCapUSD: p.MarketCap,
		LiquidityUSD: p.liquidityUSD(),
		Holders:      p.Holders,
		CreatedAtMs:  p.PairCreatedAt,
	}
	if c.MarketCapUSD == nil {
		c.MarketCapUSD = p.FDV
	}
	if p.Volume != nil {
		c.Volume24hUSD = p.Volume.H24
	}
	c.AgeMinutes = domain.AgeMinutesAt(p.PairCreatedAt, nowMs)
	for _, label := range p.Labels {
		if strings.EqualFold(label, "verified") {
			v := true
			c.Verified = &v
		}
	}
	return c
}

func parsePrice(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

func liq(p *dexPair) float64 {
	if l := p.liquidityUSD(); l != nil {
		return *l
	}
	return 0
}

var _ PriceFeed = (*DexScreener)(nil)
