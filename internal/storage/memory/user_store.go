package memory

import (
	"context"
	"sort"
	"sync"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu   sync.RWMutex
	data map[string]*domain.User // keyed by user_id
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		data: make(map[string]*domain.User),
	}
}

// Upsert inserts or replaces a user. The signer is not retained.
func (s *UserStore) Upsert(_ context.Context, u *domain.User) error {
	if u == nil || u.UserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *u
	copy.Signer = nil
	if prev, exists := s.data[u.UserID]; exists && copy.CreatedAt == 0 {
		copy.CreatedAt = prev.CreatedAt
	}
	s.data[u.UserID] = &copy
	return nil
}

// GetByID retrieves a user by ID. Returns ErrNotFound if not exists.
func (s *UserStore) GetByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.data[userID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *u
	return &copy, nil
}

// ListActive returns active users ordered by user_id ASC.
func (s *UserStore) ListActive(_ context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.User
	for _, u := range s.data {
		if u.Active {
			copy := *u
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})

	return result, nil
}

// SetActive toggles the Active flag. Returns ErrNotFound if not exists.
func (s *UserStore) SetActive(_ context.Context, userID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.data[userID]
	if !exists {
		return storage.ErrNotFound
	}
	u.Active = active
	return nil
}

var _ storage.UserStore = (*UserStore)(nil)
