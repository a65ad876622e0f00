package execution

import (
	"errors"
	"fmt"
	"strings"

	"solana-autotrader/internal/domain"
)

var (
	// ErrRouteExhausted is matched by every RouteError.
	ErrRouteExhausted = errors.New("all sources failed")

	// ErrUnsupportedSide is returned for an adapter without the requested direction.
	ErrUnsupportedSide = errors.New("side not implemented by source")

	// ErrNoRoute is returned by adapters when the quote finds no route.
	ErrNoRoute = errors.New("no route found")

	// ErrInvalidOrder is returned for orders the router refuses to start.
	ErrInvalidOrder = errors.New("invalid order")
)

// SourceError is the failure of one adapter attempt.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

// RouteError aggregates every adapter failure of one order.
type RouteError struct {
	Side     domain.Side
	Mint     string
	Failures []SourceError // in adapter order
}

func (e *RouteError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%s %s: %s: %s", strings.ToLower(e.Side.String()), e.Mint, ErrRouteExhausted.Error(), strings.Join(parts, " | "))
}

// Is matches ErrRouteExhausted.
func (e *RouteError) Is(target error) bool {
	return target == ErrRouteExhausted
}

// Unwrap exposes the per-source errors.
func (e *RouteError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
