// Package wallet holds user signing keys and signs swap transactions.
package wallet

import (
	"errors"
	"fmt"
	"strings"

	sol "github.com/gagliardetto/solana-go"

	"solana-autotrader/internal/domain"
)

// ErrInvalidSecret is returned for secrets that are not base58 ed25519 keys.
var ErrInvalidSecret = errors.New("invalid wallet secret")

// Keypair signs with an ed25519 private key.
type Keypair struct {
	key sol.PrivateKey
	pub string
}

// FromBase58 parses a base58-encoded 64-byte secret key.
func FromBase58(secret string) (*Keypair, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSecret)
	}
	key, err := sol.PrivateKeyFromBase58(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(key) != 64 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSecret, len(key))
	}
	return &Keypair{key: key, pub: key.PublicKey().String()}, nil
}

// Generate creates a random keypair.
func Generate() (*Keypair, error) {
	key, err := sol.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Keypair{key: key, pub: key.PublicKey().String()}, nil
}

// PublicKey returns the base58 public key.
func (k *Keypair) PublicKey() string {
	return k.pub
}

// Sign returns the 64-byte ed25519 signature of message.
func (k *Keypair) Sign(message []byte) ([]byte, error) {
	sig, err := k.key.Sign(message)
	if err != nil {
		return nil, err
	}
	return sig[:], nil
}

// Secret returns the base58 secret key.
func (k *Keypair) Secret() string {
	return k.key.String()
}

var _ domain.Signer = (*Keypair)(nil)
