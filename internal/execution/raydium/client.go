// Package raydium trades through the Raydium trade API.
package raydium

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
const Name = "raydium"

// Default configuration values.
const (
	DefaultBaseURL          = "https://transaction-v1.raydium.io"
	DefaultTimeout          = 15 * time.Second
	DefaultComputeUnitPrice = "25000" // micro-lamports
	txVersion               = "V0"
)

var (
	probeLamports    = decimal.NewFromInt(1_000_000)
	probeTokenAmount = decimal.NewFromInt(1_000_000)
)

// Client implements execution.Buyer and execution.Seller.
type Client struct {
	baseURL          string
	http             *http.Client
	slippageBps      int
	computeUnitPrice string
	submitter        *execution.Submitter
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

// WithComputeUnitPrice sets the priority fee in micro-lamports per compute unit.
func WithComputeUnitPrice(microLamports string) ClientOption {
	return func(c *Client) {
		c.computeUnitPrice = microLamports
	}
}

// New creates a Raydium client submitting through submitter.
func New(submitter *execution.Submitter, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:          DefaultBaseURL,
		http:             &http.Client{Timeout: DefaultTimeout},
		slippageBps:      execution.DefaultSlippageBps,
		computeUnitPrice: DefaultComputeUnitPrice,
		submitter:        submitter,
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

// Sell swaps amount atomic units of mint into SOL, spending from the
// signer's associated token account.
func (c *Client) Sell(ctx context.Context, mint string, amount float64, signer domain.Signer) (execution.Execution, error) {
	probe := amount == 0
	units := execution.AtomicUnits(amount)
	if probe {
		units = probeTokenAmount
	}
	return c.swap(ctx, mint, solana.WrappedSOLMint, units, signer, probe)
}

type computeResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Version string `json:"version"`
	Msg     string `json:"msg,omitempty"`
	Data    *struct {
		InputMint    string            `json:"inputMint"`
		InputAmount  string            `json:"inputAmount"`
		OutputMint   string            `json:"outputMint"`
		OutputAmount string            `json:"outputAmount"`
		RoutePlan    []json.RawMessage `json:"routePlan"`
	} `json:"data"`
}

type transactionRequest struct {
	ComputeUnitPriceMicroLamports string          `json:"computeUnitPriceMicroLamports"`
	SwapResponse                  json.RawMessage `json:"swapResponse"`
	TxVersion                     string          `json:"txVersion"`
	Wallet                        string          `json:"wallet"`
	WrapSol                       bool            `json:"wrapSol"`
	UnwrapSol                     bool            `json:"unwrapSol"`
	InputAccount                  string          `json:"inputAccount,omitempty"`
}

type transactionResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Msg     string `json:"msg,omitempty"`
	Data    []struct {
		Transaction string `json:"transaction"`
	} `json:"data"`
}

func (c *Client) swap(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal, signer domain.Signer, probe bool) (execution.Execution, error) {
	if !probe && !amount.IsPositive() {
		return execution.Execution{}, fmt.Errorf("amount rounds to zero")
	}

	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", amount.String())
	q.Set("slippageBps", strconv.Itoa(c.slippageBps))
	q.Set("txVersion", txVersion)

	var raw json.RawMessage
	if err := execution.GetJSON(ctx, c.http, c.baseURL+"/compute/swap-base-in?"+q.Encode(), &raw); err != nil {
		return execution.Execution{}, fmt.Errorf("compute: %w", err)
	}
	var compute computeResponse
	if err := json.Unmarshal(raw, &compute); err != nil {
		return execution.Execution{}, fmt.Errorf("decode compute: %w", err)
	}
	if !compute.Success || compute.Data == nil || compute.Data.OutputAmount == "" || compute.Data.OutputAmount == "0" {
		if compute.Msg != "" {
			return execution.Execution{}, fmt.Errorf("%w: %s", execution.ErrNoRoute, compute.Msg)
		}
		return execution.Execution{}, execution.ErrNoRoute
	}

	inAmount, err := execution.ParseAmount(compute.Data.InputAmount)
	if err != nil {
		return execution.Execution{}, err
	}
	outAmount, err := execution.ParseAmount(compute.Data.OutputAmount)
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

	req := transactionRequest{
		ComputeUnitPriceMicroLamports: c.computeUnitPrice,
		SwapResponse:                  raw,
		TxVersion:                     txVersion,
		Wallet:                        signer.PublicKey(),
		WrapSol:                       inputMint == solana.WrappedSOLMint,
		UnwrapSol:                     outputMint == solana.WrappedSOLMint,
	}
	if inputMint != solana.WrappedSOLMint {
		ata, err := solana.AssociatedTokenAddress(signer.PublicKey(), inputMint)
		if err != nil {
			return execution.Execution{}, fmt.Errorf("derive input account: %w", err)
		}
		req.InputAccount = ata
	}

	var txResp transactionResponse
	if err := execution.PostJSON(ctx, c.http, c.baseURL+"/transaction/swap-base-in", req, &txResp); err != nil {
		return execution.Execution{}, fmt.Errorf("transaction: %w", err)
	}
	if !txResp.Success || len(txResp.Data) == 0 {
		return execution.Execution{}, fmt.Errorf("transaction: %s", txResp.Msg)
	}

	// Multi-transaction swaps land in order; the last signature identifies the swap.
	for _, tx := range txResp.Data {
		sig, err := c.submitter.Submit(ctx, tx.Transaction, signer)
		if err != nil {
			return execution.Execution{TxID: sig}, err
		}
		exec.TxID = sig
	}
	return exec, nil
}

var (
	_ execution.Buyer  = (*Client)(nil)
	_ execution.Seller = (*Client)(nil)
)
