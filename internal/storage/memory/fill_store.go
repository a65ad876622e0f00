package memory

import (
	"context"
	"sort"
	"sync"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/storage"
)

// FillStore is an in-memory implementation of storage.FillStore.
type FillStore struct {
	mu    sync.RWMutex
	fills []*domain.Fill
	ids   map[string]struct{}
}

// NewFillStore creates a new in-memory fill store.
func NewFillStore() *FillStore {
	return &FillStore{
		ids: make(map[string]struct{}),
	}
}

// Insert appends a fill. Returns ErrDuplicateKey if fill_id exists.
func (s *FillStore) Insert(_ context.Context, f *domain.Fill) error {
	if f == nil || f.FillID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[f.FillID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *f
	s.fills = append(s.fills, &copy)
	s.ids[f.FillID] = struct{}{}
	return nil
}

// GetByPosition returns fills of a position ordered by timestamp ASC.
func (s *FillStore) GetByPosition(_ context.Context, positionID string) ([]*domain.Fill, error) {
	return s.filter(func(f *domain.Fill) bool {
		return f.PositionID == positionID
	}), nil
}

// GetByUser returns fills of a user within [start, end] ms.
func (s *FillStore) GetByUser(_ context.Context, userID string, start, end int64) ([]*domain.Fill, error) {
	return s.filter(func(f *domain.Fill) bool {
		return f.UserID == userID && f.Timestamp >= start && f.Timestamp <= end
	}), nil
}

// Len returns the number of stored fills.
func (s *FillStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fills)
}

func (s *FillStore) filter(keep func(*domain.Fill) bool) []*domain.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Fill
	for _, f := range s.fills {
		if keep(f) {
			copy := *f
			result = append(result, &copy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result
}

var _ storage.FillStore = (*FillStore)(nil)
