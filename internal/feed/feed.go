// Package feed supplies token candidates and current prices.
package feed

import (
	"context"
	"errors"

	"solana-autotrader/internal/domain"
)

// ErrPriceUnavailable is returned when no price is known for an address.
var ErrPriceUnavailable = errors.New("price unavailable")

// PriceFeed is a market-data source.
type PriceFeed interface {
	// FetchCandidates returns a best-effort batch snapshot of candidate tokens.
	FetchCandidates(ctx context.Context) ([]domain.TokenCandidate, error)

	// FetchCurrentPrice returns the current USD price of a token.
	FetchCurrentPrice(ctx context.Context, address string) (float64, error)
}

// Watcher receives interest in live prices for specific tokens.
type Watcher interface {
	Watch(address string)
	Unwatch(address string)
}
