package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
// The strategy is stored as JSONB.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

// Upsert inserts or replaces a user. created_at is kept on conflict.
func (s *UserStore) Upsert(ctx context.Context, u *domain.User) (err error) {
	if u == nil || u.UserID == "" {
		return storage.ErrInvalidInput
	}
	defer observe("upsert_user", time.Now(), &err)

	strategy, err := json.Marshal(u.Strategy)
	if err != nil {
		return fmt.Errorf("marshal strategy: %w", err)
	}

	query := `
		INSERT INTO users (user_id, wallet, strategy, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			wallet = EXCLUDED.wallet,
			strategy = EXCLUDED.strategy,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.pool.Exec(ctx, query, u.UserID, u.Wallet, strategy, u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID. Returns ErrNotFound if not exists.
func (s *UserStore) GetByID(ctx context.Context, userID string) (_ *domain.User, err error) {
	defer observe("get_user", time.Now(), &err)

	query := `
		SELECT user_id, wallet, strategy, active, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`
	u, err := scanUser(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// ListActive returns active users ordered by user_id ASC.
func (s *UserStore) ListActive(ctx context.Context) (_ []*domain.User, err error) {
	defer observe("list_active_users", time.Now(), &err)

	query := `
		SELECT user_id, wallet, strategy, active, created_at, updated_at
		FROM users
		WHERE active
		ORDER BY user_id ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// SetActive toggles the Active flag. Returns ErrNotFound if not exists.
func (s *UserStore) SetActive(ctx context.Context, userID string, active bool) (err error) {
	defer observe("set_user_active", time.Now(), &err)

	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET active = $2, updated_at = $3 WHERE user_id = $1`,
		userID, active, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u        domain.User
		strategy []byte
	)
	if err := row.Scan(&u.UserID, &u.Wallet, &strategy, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if len(strategy) > 0 {
		if err := json.Unmarshal(strategy, &u.Strategy); err != nil {
			return nil, fmt.Errorf("unmarshal strategy: %w", err)
		}
	}
	return &u, nil
}
