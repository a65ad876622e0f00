package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	position_id, user_id, mint, entry_price, base_amount, buy_amount,
	exited_stage1, exited_stage2, stopped,
	stage1_sold, stage2_sold, stop_sold,
	source, tx_id, state, opened_at, updated_at, closed_at
`

// Insert adds a new position. The partial unique index on (user_id, mint)
// rejects a second live position with ErrDuplicateKey.
func (s *PositionStore) Insert(ctx context.Context, p *domain.Position) (err error) {
	if p == nil || p.PositionID == "" || p.UserID == "" || p.Mint == "" {
		return storage.ErrInvalidInput
	}
	defer observe("insert_position", time.Now(), &err)

	query := `
		INSERT INTO positions (` + positionColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12,
			$13, $14, $15, $16, $17, $18
		)
	`
	_, err = s.pool.Exec(ctx, query,
		p.PositionID, p.UserID, p.Mint, p.EntryPrice, p.BaseAmount, p.BuyAmount,
		p.ExitedStage1, p.ExitedStage2, p.Stopped,
		p.Stage1Sold, p.Stage2Sold, p.StopSold,
		p.Source, p.TxID, string(p.State), p.OpenedAt, p.UpdatedAt, p.ClosedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update writes the exit flags, sold amounts and state.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) (err error) {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}
	defer observe("update_position", time.Now(), &err)

	query := `
		UPDATE positions SET
			exited_stage1 = $2, exited_stage2 = $3, stopped = $4,
			stage1_sold = $5, stage2_sold = $6, stop_sold = $7,
			state = $8, updated_at = $9, closed_at = $10
		WHERE position_id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		p.PositionID,
		p.ExitedStage1, p.ExitedStage2, p.Stopped,
		p.Stage1Sold, p.Stage2Sold, p.StopSold,
		string(p.State), p.UpdatedAt, p.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, positionID string) (_ *domain.Position, err error) {
	defer observe("get_position", time.Now(), &err)

	query := `SELECT ` + positionColumns + ` FROM positions WHERE position_id = $1`
	p, err := scanPosition(s.pool.QueryRow(ctx, query, positionID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// ListOpen returns non-terminal positions; empty userID lists all users.
func (s *PositionStore) ListOpen(ctx context.Context, userID string) (_ []*domain.Position, err error) {
	defer observe("list_open_positions", time.Now(), &err)

	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE state NOT IN ('CLOSED', 'STOPPED') AND ($1 = '' OR user_id = $1)
		ORDER BY opened_at ASC, position_id ASC
	`
	return s.query(ctx, query, userID)
}

// ListByUser returns every position of a user.
func (s *PositionStore) ListByUser(ctx context.Context, userID string) (_ []*domain.Position, err error) {
	defer observe("list_user_positions", time.Now(), &err)

	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE user_id = $1
		ORDER BY opened_at ASC, position_id ASC
	`
	return s.query(ctx, query, userID)
}

func (s *PositionStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Position, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return positions, nil
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var (
		p     domain.Position
		state string
	)
	err := row.Scan(
		&p.PositionID, &p.UserID, &p.Mint, &p.EntryPrice, &p.BaseAmount, &p.BuyAmount,
		&p.ExitedStage1, &p.ExitedStage2, &p.Stopped,
		&p.Stage1Sold, &p.Stage2Sold, &p.StopSold,
		&p.Source, &p.TxID, &state, &p.OpenedAt, &p.UpdatedAt, &p.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	p.State = domain.PositionState(state)
	return &p, nil
}
