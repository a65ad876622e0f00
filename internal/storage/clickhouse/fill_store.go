package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/observability"
	"solana-autotrader/internal/storage"
)

// FillStore implements storage.FillStore using ClickHouse.
type FillStore struct {
	conn *Conn
}

// NewFillStore creates a new FillStore.
func NewFillStore(conn *Conn) *FillStore {
	return &FillStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FillStore = (*FillStore)(nil)

const fillColumns = `
	fill_id, user_id, position_id, mint, side, stage, source, tx_id,
	amount_in, amount_out, price, latency_ms, timestamp_ms
`

// Insert adds a new fill. Returns ErrDuplicateKey if fill_id exists.
// ReplacingMergeTree would collapse duplicates later, so existence is checked first.
func (s *FillStore) Insert(ctx context.Context, f *domain.Fill) (err error) {
	if f == nil || f.FillID == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "insert_fill", time.Since(start).Seconds(), err) }()

	var count uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM fills WHERE fill_id = ?`, f.FillID).Scan(&count); err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	err = s.conn.Exec(ctx, `INSERT INTO fills (`+fillColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FillID, f.UserID, f.PositionID, f.Mint, string(f.Side), f.Stage, f.Source, f.TxID,
		f.AmountIn, f.AmountOut, f.Price, f.LatencyMs, f.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert fill: %w", err)
	}
	return nil
}

// GetByPosition returns fills of a position ordered by timestamp ASC.
func (s *FillStore) GetByPosition(ctx context.Context, positionID string) ([]*domain.Fill, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+fillColumns+`
		FROM fills FINAL
		WHERE position_id = ?
		ORDER BY timestamp_ms ASC, fill_id ASC
	`, positionID)
	if err != nil {
		return nil, fmt.Errorf("query by position: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

// GetByUser returns fills of a user within [start, end] ms.
func (s *FillStore) GetByUser(ctx context.Context, userID string, start, end int64) ([]*domain.Fill, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+fillColumns+`
		FROM fills FINAL
		WHERE user_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, fill_id ASC
	`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by user: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanFills(rows chRows) ([]*domain.Fill, error) {
	var fills []*domain.Fill
	for rows.Next() {
		var (
			f    domain.Fill
			side string
		)
		err := rows.Scan(
			&f.FillID, &f.UserID, &f.PositionID, &f.Mint, &side, &f.Stage, &f.Source, &f.TxID,
			&f.AmountIn, &f.AmountOut, &f.Price, &f.LatencyMs, &f.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fill row: %w", err)
		}
		f.Side = domain.Side(side)
		fills = append(fills, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fills: %w", err)
	}
	return fills, nil
}
