package stub

import (
	"context"
	"fmt"
	"sync"

	"solana-autotrader/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
// Sent transactions are confirmed immediately unless FailSend is set.
type RPCClient struct {
	mu sync.Mutex

	Balances      map[string]uint64
	TokenBalances map[string]*solana.TokenAmount
	Sent          [][]byte
	Statuses      map[string]*solana.SignatureStatus
	FailSend      error
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Balances:      make(map[string]uint64),
		TokenBalances: make(map[string]*solana.TokenAmount),
		Statuses:      make(map[string]*solana.SignatureStatus),
	}
}

// SetBalance sets the lamport balance of pubkey.
func (c *RPCClient) SetBalance(pubkey string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Balances[pubkey] = lamports
}

// SetTokenBalance sets the raw token balance of a token account.
func (c *RPCClient) SetTokenBalance(account, amount string, decimals int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenBalances[account] = &solana.TokenAmount{Amount: amount, Decimals: decimals}
}

// SentCount returns the number of submitted transactions.
func (c *RPCClient) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

// GetBalance returns the stored balance; unknown accounts have zero lamports.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Balances[pubkey], nil
}

// GetTokenAccountBalance returns the stored token balance.
func (c *RPCClient) GetTokenAccountBalance(_ context.Context, account string) (*solana.TokenAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	amt, ok := c.TokenBalances[account]
	if !ok {
		return nil, solana.ErrAccountNotFound
	}
	cp := *amt
	return &cp, nil
}

// SendTransaction records the transaction and marks it finalized.
func (c *RPCClient) SendTransaction(_ context.Context, rawTx []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailSend != nil {
		return "", c.FailSend
	}
	c.Sent = append(c.Sent, append([]byte(nil), rawTx...))
	sig := fmt.Sprintf("stub-sig-%d", len(c.Sent))
	c.Statuses[sig] = &solana.SignatureStatus{ConfirmationStatus: solana.CommitmentFinalized}
	return sig, nil
}

// GetSignatureStatuses returns stored statuses; unknown signatures are nil.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		if st, ok := c.Statuses[sig]; ok {
			cp := *st
			out[i] = &cp
		}
	}
	return out, nil
}

var _ solana.RPCClient = (*RPCClient)(nil)
