package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeAddress trims and lower-cases a token address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// AddressHash computes the dedup key of a token address.
// Formula: SHA256(lower(trim(address)))
// Returns hex-encoded hash (64 characters).
func AddressHash(address string) string {
	hash := sha256.Sum256([]byte(NormalizeAddress(address)))
	return hex.EncodeToString(hash[:])
}
