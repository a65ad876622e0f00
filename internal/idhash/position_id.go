package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePositionID computes a deterministic position_id using SHA256.
// Formula: SHA256(user_id|mint|buy_tx_id)
// Returns hex-encoded hash (64 characters).
func ComputePositionID(userID, mint, buyTxID string) string {
	data := fmt.Sprintf("%s|%s|%s", userID, mint, buyTxID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeFillID computes a deterministic fill_id using SHA256.
// Formula: SHA256(position_id|stage|tx_id)
// Returns hex-encoded hash (64 characters).
func ComputeFillID(positionID, stage, txID string) string {
	data := fmt.Sprintf("%s|%s|%s", positionID, stage, txID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
