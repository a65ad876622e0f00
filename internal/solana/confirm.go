package solana

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTransactionFailed is returned when a submitted transaction landed with an error.
var ErrTransactionFailed = errors.New("transaction failed")

// DefaultConfirmInterval is the polling interval for WaitForConfirmation.
const DefaultConfirmInterval = 500 * time.Millisecond

// WaitForConfirmation polls the signature until it reaches commitment, fails
// on chain, or ctx is done.
func WaitForConfirmation(ctx context.Context, rpc RPCClient, signature, commitment string, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultConfirmInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		statuses, err := rpc.GetSignatureStatuses(ctx, []string{signature})
		if err == nil && len(statuses) == 1 && statuses[0] != nil {
			st := statuses[0]
			if st.Err != nil {
				return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, signature, st.Err)
			}
			if st.Reached(commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirm %s: %w", signature, ctx.Err())
		case <-ticker.C:
		}
	}
}
