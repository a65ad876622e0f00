package wallet

import (
	"errors"
	"fmt"

	sol "github.com/gagliardetto/solana-go"

	"solana-autotrader/internal/domain"
)

// ErrMalformedTransaction is returned for bytes that are not a wire-format transaction.
var ErrMalformedTransaction = errors.New("malformed transaction")

// SignTransaction signs a serialized transaction returned by a swap API.
// The signer must be the fee payer; its signature goes into slot 0.
// Works for legacy and v0 messages.
func SignTransaction(raw []byte, signer domain.Signer) ([]byte, error) {
	tx, err := decodeTransaction(raw)
	if err != nil {
		return nil, err
	}
	if len(tx.Message.AccountKeys) == 0 {
		return nil, fmt.Errorf("%w: no account keys", ErrMalformedTransaction)
	}

	want, err := sol.PublicKeyFromBase58(signer.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("decode signer key: %w", err)
	}
	if payer := tx.Message.AccountKeys[0]; !payer.Equals(want) {
		return nil, fmt.Errorf("fee payer %s is not signer %s", payer, want)
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: encode message: %v", ErrMalformedTransaction, err)
	}
	sig, err := signer.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	if len(sig) != len(sol.Signature{}) {
		return nil, fmt.Errorf("signature length %d", len(sig))
	}
	tx.Signatures[0] = sol.SignatureFromBytes(sig)

	out, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return out, nil
}

// TransactionSignature returns the base58 signature in slot 0, the transaction id.
func TransactionSignature(raw []byte) (string, error) {
	tx, err := decodeTransaction(raw)
	if err != nil {
		return "", err
	}
	return tx.Signatures[0].String(), nil
}

func decodeTransaction(raw []byte) (*sol.Transaction, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedTransaction)
	}
	tx, err := sol.TransactionFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}
	if len(tx.Signatures) == 0 {
		return nil, fmt.Errorf("%w: no signature slots", ErrMalformedTransaction)
	}
	return tx, nil
}
