package storage

import (
	"context"

	"solana-autotrader/internal/domain"
)

// UserStore provides access to users storage.
// The signing credential is never stored; callers attach it after loading.
type UserStore interface {
	// Upsert inserts or replaces a user record.
	Upsert(ctx context.Context, u *domain.User) error

	// GetByID retrieves a user. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, userID string) (*domain.User, error)

	// ListActive returns all users with Active set, ordered by user_id ASC.
	ListActive(ctx context.Context) ([]*domain.User, error)

	// SetActive toggles the Active flag. Returns ErrNotFound if not exists.
	SetActive(ctx context.Context, userID string, active bool) error
}

// PositionStore provides access to positions storage.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if position_id exists
	// or the user already has a non-terminal position on the same mint.
	Insert(ctx context.Context, p *domain.Position) error

	// Update replaces the mutable exit fields. Returns ErrNotFound if not exists.
	Update(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, positionID string) (*domain.Position, error)

	// ListOpen returns non-terminal positions ordered by opened_at ASC.
	// An empty userID lists open positions of every user.
	ListOpen(ctx context.Context, userID string) ([]*domain.Position, error)

	// ListByUser returns all positions of a user ordered by opened_at ASC.
	ListByUser(ctx context.Context, userID string) ([]*domain.Position, error)
}

// FillStore provides access to the append-only fills log.
type FillStore interface {
	// Insert adds a new fill. Returns ErrDuplicateKey if fill_id exists.
	Insert(ctx context.Context, f *domain.Fill) error

	// GetByPosition returns fills of a position ordered by timestamp ASC.
	GetByPosition(ctx context.Context, positionID string) ([]*domain.Fill, error)

	// GetByUser returns fills of a user within [start, end] ms (inclusive),
	// ordered by timestamp ASC.
	GetByUser(ctx context.Context, userID string, start, end int64) ([]*domain.Fill, error)
}
