package engine

import (
	"errors"

	"solana-autotrader/internal/execution"
	"solana-autotrader/internal/monitor"
)

// Engine errors. None of them stops the engine; each is scoped to one
// user, position or order.
var (
	// ErrInsufficientBalance is returned when the wallet cannot cover the buy plus fees.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrCapacityExceeded is returned when the user already holds MaxActiveTrades positions.
	ErrCapacityExceeded = errors.New("max active trades reached")

	// ErrFeedUnavailable wraps candidate feed failures.
	ErrFeedUnavailable = errors.New("price feed unavailable")

	// ErrUnknownUser is returned for user IDs the engine has not registered.
	ErrUnknownUser = errors.New("unknown user")

	// ErrSellFailed marks a transient sell failure; the monitor retries.
	ErrSellFailed = monitor.ErrSellFailed

	// ErrRouteExhausted is returned when every trade source failed.
	ErrRouteExhausted = execution.ErrRouteExhausted
)
