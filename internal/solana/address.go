package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is returned for strings that are not 32-byte base58 keys.
var ErrInvalidAddress = errors.New("invalid address")

// DecodeAddress decodes a base58 public key.
func DecodeAddress(address string) ([]byte, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, address, err)
	}
	if len(decoded) != 32 {
		return nil, fmt.Errorf("%w: %s: length %d", ErrInvalidAddress, address, len(decoded))
	}
	return decoded, nil
}

// ValidateAddress checks that address is a base58 32-byte key.
func ValidateAddress(address string) error {
	_, err := DecodeAddress(address)
	return err
}

// AssociatedTokenAddress derives the owner's associated token account for
// mint under the classic SPL token program.
func AssociatedTokenAddress(owner, mint string) (string, error) {
	return AssociatedTokenAddressWithProgram(owner, mint, TokenProgramID)
}

// AssociatedTokenAddressWithProgram derives the ATA for a specific token program.
// Seeds: [owner, token_program_id, mint]
func AssociatedTokenAddressWithProgram(owner, mint, tokenProgram string) (string, error) {
	ownerBytes, err := DecodeAddress(owner)
	if err != nil {
		return "", err
	}
	mintBytes, err := DecodeAddress(mint)
	if err != nil {
		return "", err
	}
	programBytes, err := DecodeAddress(tokenProgram)
	if err != nil {
		return "", err
	}
	ataProgram, err := DecodeAddress(AssociatedTokenProgramID)
	if err != nil {
		return "", err
	}

	pda := derivePDA([][]byte{ownerBytes, programBytes, mintBytes}, ataProgram)
	if pda == "" {
		return "", fmt.Errorf("no valid bump for %s/%s", owner, mint)
	}
	return pda, nil
}

// derivePDA derives a Program Derived Address using the Solana algorithm.
func derivePDA(seeds [][]byte, programID []byte) string {
	// sha256(seeds || bump || program_id || "ProgramDerivedAddress"),
	// searching bumps from 255 down for the first off-curve hash
	for bump := 255; bump >= 0; bump-- {
		data := make([]byte, 0, 128)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, byte(bump))
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}

	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
