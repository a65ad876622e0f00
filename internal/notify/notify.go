// Package notify delivers per-user trade notifications.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier is a notification sink. Implementations must not block the trading
// path for long and report delivery failures only through logging.
type Notifier interface {
	Notify(ctx context.Context, userID, message string)
}

// Log writes notifications to a zerolog logger.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a logging notifier.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "notify").Logger()}
}

// Notify logs message for userID.
func (l *Log) Notify(_ context.Context, userID, message string) {
	l.logger.Info().Str("user", userID).Msg(message)
}

// Multi fans a notification out to every sink in order.
type Multi []Notifier

// Notify delivers to all sinks.
func (m Multi) Notify(ctx context.Context, userID, message string) {
	for _, n := range m {
		n.Notify(ctx, userID, message)
	}
}

// Nop discards notifications.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, string, string) {}

var (
	_ Notifier = (*Log)(nil)
	_ Notifier = Multi(nil)
	_ Notifier = Nop{}
)
