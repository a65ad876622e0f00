// Package jupiter trades through the Jupiter v6 swap aggregator.
package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/execution"
	"solana-autotrader/internal/solana"
)

// Source name reported in fills.
const Name = "jupiter"

// Default configuration values.
const (
	DefaultBaseURL = "https://quote-api.jup.ag/v6"
	DefaultTimeout = 15 * time.Second
)

// Probe amounts used when a zero-amount order only asks whether a route exists.
var (
	probeLamports    = decimal.NewFromInt(1_000_000)
	probeTokenAmount = decimal.NewFromInt(1_000_000)
)

// Client implements execution.Buyer and execution.Seller.
type Client struct {
	baseURL     string
	http        *http.Client
	slippageBps int
	submitter   *execution.Submitter
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL sets the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.http = client
	}
}

// WithSlippageBps sets the quote slippage tolerance.
func WithSlippageBps(bps int) ClientOption {
	return func(c *Client) {
		c.slippageBps = bps
	}
}

// New creates a Jupiter client submitting through submitter.
func New(submitter *execution.Submitter, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		http:        &http.Client{Timeout: DefaultTimeout},
		slippageBps: execution.DefaultSlippageBps,
		submitter:   submitter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the source name.
func (c *Client) Name() string { return Name }

// Buy swaps amountSOL of SOL into mint.
func (c *Client) Buy(ctx context.Context, mint string, amountSOL float64, signer domain.Signer) (execution.Execution, error) {
	probe := amountSOL == 0
	amount := execution.SOLToLamports(amountSOL)
	if probe {
		amount = probeLamports
	}
	exec, err := c.swap(ctx, solana.WrappedSOLMint, mint, amount, signer, probe)
	if err != nil {
		return exec, err
	}
	exec.AmountIn = exec.AmountIn / solana.LamportsPerSOL
	return exec, nil
}

// Sell swaps amount atomic units of mint into SOL.
func (c *Client) Sell(ctx context.Context, mint string, amount float64, signer domain.Signer) (execution.Execution, error) {
	probe := amount == 0
	units := execution.AtomicUnits(amount)
	if probe {
		units = probeTokenAmount
	}
	return c.swap(ctx, mint, solana.WrappedSOLMint, units, signer, probe)
}

func (c *Client) swap(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal, signer domain.Signer, probe bool) (execution.Execution, error) {
	if !probe && !amount.IsPositive() {
		return execution.Execution{}, fmt.Errorf("amount rounds to zero")
	}

	quote, raw, err := c.quote(ctx, inputMint, outputMint, amount)
	if err != nil {
		return execution.Execution{}, err
	}
	inAmount, err := execution.ParseAmount(quote.InAmount)
	if err != nil {
		return execution.Execution{}, err
	}
	outAmount, err := execution.ParseAmount(quote.OutAmount)
	if err != nil {
		return execution.Execution{}, err
	}
	exec := execution.Execution{AmountIn: inAmount, AmountOut: outAmount}
	if probe {
		return exec, nil
	}

	if signer == nil {
		return execution.Execution{}, fmt.Errorf("missing signer")
	}
	if c.submitter == nil {
		return execution.Execution{}, fmt.Errorf("no submitter configured")
	}

	swapTx, err := c.swapTransaction(ctx, raw, signer.PublicKey())
	if err != nil {
		return execution.Execution{}, err
	}
	sig, err := c.submitter.Submit(ctx, swapTx, signer)
	if err != nil {
		return execution.Execution{TxID: sig}, err
	}
	exec.TxID = sig
	return exec, nil
}

// quoteResponse holds the fields read from /quote. The raw body is sent back
// unchanged to /swap.
type quoteResponse struct {
	InputMint  string            `json:"inputMint"`
	OutputMint string            `json:"outputMint"`
	InAmount   string            `json:"inAmount"`
	OutAmount  string            `json:"outAmount"`
	RoutePlan  []json.RawMessage `json:"routePlan"`
	Error      string            `json:"error,omitempty"`
}

func (c *Client) quote(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal) (*quoteResponse, json.RawMessage, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", amount.String())
	q.Set("slippageBps", strconv.Itoa(c.slippageBps))

	var raw json.RawMessage
	if err := execution.GetJSON(ctx, c.http, c.baseURL+"/quote?"+q.Encode(), &raw); err != nil {
		return nil, nil, fmt.Errorf("quote: %w", err)
	}
	var quote quoteResponse
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, nil, fmt.Errorf("decode quote: %w", err)
	}
	if quote.Error != "" {
		return nil, nil, fmt.Errorf("%w: %s", execution.ErrNoRoute, quote.Error)
	}
	if quote.OutAmount == "" || quote.OutAmount == "0" || len(quote.RoutePlan) == 0 {
		return nil, nil, execution.ErrNoRoute
	}
	return &quote, raw, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	AsLegacyTransaction       bool            `json:"asLegacyTransaction"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports string          `json:"prioritizationFeeLamports"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight int64  `json:"lastValidBlockHeight"`
}

func (c *Client) swapTransaction(ctx context.Context, quote json.RawMessage, userPublicKey string) (string, error) {
	req := swapRequest{
		QuoteResponse:             quote,
		UserPublicKey:             userPublicKey,
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: "auto",
	}
	var resp swapResponse
	if err := execution.PostJSON(ctx, c.http, c.baseURL+"/swap", req, &resp); err != nil {
		return "", fmt.Errorf("swap: %w", err)
	}
	if resp.SwapTransaction == "" {
		return "", fmt.Errorf("swap: empty transaction")
	}
	return resp.SwapTransaction, nil
}

var (
	_ execution.Buyer  = (*Client)(nil)
	_ execution.Seller = (*Client)(nil)
)
