package memory

import (
	"context"
	"sort"
	"sync"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by position_id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists
// or the user already holds a live position on the mint.
func (s *PositionStore) Insert(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" || p.UserID == "" || p.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; exists {
		return storage.ErrDuplicateKey
	}
	if !p.IsTerminal() {
		for _, cur := range s.data {
			if cur.UserID == p.UserID && cur.Mint == p.Mint && !cur.IsTerminal() {
				return storage.ErrDuplicateKey
			}
		}
	}

	s.data[p.PositionID] = clonePosition(p)
	return nil
}

// Update replaces a stored position. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; !exists {
		return storage.ErrNotFound
	}
	s.data[p.PositionID] = clonePosition(p)
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, positionID string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return clonePosition(p), nil
}

// ListOpen returns non-terminal positions, for one user or all when userID is empty.
func (s *PositionStore) ListOpen(_ context.Context, userID string) ([]*domain.Position, error) {
	return s.list(func(p *domain.Position) bool {
		return !p.IsTerminal() && (userID == "" || p.UserID == userID)
	}), nil
}

// ListByUser returns every position of a user.
func (s *PositionStore) ListByUser(_ context.Context, userID string) ([]*domain.Position, error) {
	return s.list(func(p *domain.Position) bool {
		return p.UserID == userID
	}), nil
}

func (s *PositionStore) list(keep func(*domain.Position) bool) []*domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if keep(p) {
			result = append(result, clonePosition(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].OpenedAt != result[j].OpenedAt {
			return result[i].OpenedAt < result[j].OpenedAt
		}
		return result[i].PositionID < result[j].PositionID
	})
	return result
}

func clonePosition(p *domain.Position) *domain.Position {
	copy := *p
	if p.ClosedAt != nil {
		closed := *p.ClosedAt
		copy.ClosedAt = &closed
	}
	return &copy
}

var _ storage.PositionStore = (*PositionStore)(nil)
