package execution

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/solana"
	"solana-autotrader/internal/wallet"
)

// Default submission parameters.
const (
	DefaultSlippageBps    = 100
	DefaultConfirmTimeout = 60 * time.Second
)

var lamportsPerSOL = decimal.NewFromInt(solana.LamportsPerSOL)

// Submitter signs swap transactions from an API and lands them on chain.
type Submitter struct {
	RPC             solana.RPCClient
	Commitment      string
	ConfirmTimeout  time.Duration
	ConfirmInterval time.Duration
}

// NewSubmitter creates a submitter confirming at the "confirmed" level.
func NewSubmitter(rpc solana.RPCClient) *Submitter {
	return &Submitter{
		RPC:            rpc,
		Commitment:     solana.CommitmentConfirmed,
		ConfirmTimeout: DefaultConfirmTimeout,
	}
}

// Submit signs the base64 transaction and sends it, then waits for
// confirmation. A cancelled ctx aborts before anything is sent.
func (s *Submitter) Submit(ctx context.Context, txBase64 string, signer domain.Signer) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("decode swap transaction: %w", err)
	}
	signed, err := wallet.SignTransaction(raw, signer)
	if err != nil {
		return "", err
	}

	// losing attempts back out here
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("aborted before submit: %w", err)
	}

	sig, err := s.RPC.SendTransaction(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	// A sent swap can still land; confirmation only honours the timeout.
	timeout := s.ConfirmTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := solana.WaitForConfirmation(cctx, s.RPC, sig, s.Commitment, s.ConfirmInterval); err != nil {
		return sig, err
	}
	return sig, nil
}

// SOLToLamports converts a SOL amount to integer lamports, truncating.
func SOLToLamports(sol float64) decimal.Decimal {
	return decimal.NewFromFloat(sol).Mul(lamportsPerSOL).Truncate(0)
}

// AtomicUnits truncates a token amount to whole atomic units.
func AtomicUnits(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount).Truncate(0)
}

// ParseAmount parses an integer amount string from a swap API.
func ParseAmount(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
