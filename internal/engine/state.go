package engine

import (
	"context"
	"errors"
	"sort"
	"sync"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/monitor"
)

var (
	errAlreadyOpen  = errors.New("position already open")
	errUserInactive = errors.New("user inactive")
)

// slot is one entry of a user's open set. A nil monitor marks a buy in flight.
type slot struct {
	monitor *monitor.Monitor
	cancel  context.CancelFunc
}

// userState holds one user's registry entry and open set. mu serializes
// every mutation for the user; users never share a lock.
type userState struct {
	id string

	mu   sync.Mutex
	user domain.User
	open map[string]*slot // keyed by mint
}

func newUserState(u domain.User) *userState {
	return &userState{
		id:   u.UserID,
		user: u,
		open: make(map[string]*slot),
	}
}

func (s *userState) setUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

func (s *userState) snapshotUser() domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// reserve claims a slot for mint. max <= 0 skips the capacity check.
func (s *userState) reserve(mint string, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.user.Active {
		return errUserInactive
	}
	if _, ok := s.open[mint]; ok {
		return errAlreadyOpen
	}
	if max > 0 && len(s.open) >= max {
		return ErrCapacityExceeded
	}
	s.open[mint] = &slot{}
	return nil
}

// unreserve drops a reservation that never got a monitor.
func (s *userState) unreserve(mint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl, ok := s.open[mint]; ok && sl.monitor == nil {
		delete(s.open, mint)
	}
}

// attach fills the reservation for mint with m. It fails when the
// reservation was dropped by deactivate or the user is no longer active.
func (s *userState) attach(mint string, m *monitor.Monitor, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.open[mint]
	if !ok || sl.monitor != nil || !s.user.Active {
		return false
	}
	sl.monitor = m
	sl.cancel = cancel
	return true
}

// release removes mint if it is still held by m.
func (s *userState) release(mint string, m *monitor.Monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl, ok := s.open[mint]; ok && sl.monitor == m {
		delete(s.open, mint)
	}
}

func (s *userState) has(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.open[mint]
	return ok
}

// count returns the size of the open set including reservations.
func (s *userState) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// deactivate clears the open set and the Active flag, returning the cancel
// funcs of every running monitor.
func (s *userState) deactivate() []context.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user.Active = false
	cancels := make([]context.CancelFunc, 0, len(s.open))
	for mint, sl := range s.open {
		if sl.cancel != nil {
			cancels = append(cancels, sl.cancel)
		}
		delete(s.open, mint)
	}
	return cancels
}

func (s *userState) positions() []domain.Position {
	s.mu.Lock()
	out := make([]domain.Position, 0, len(s.open))
	for _, sl := range s.open {
		if sl.monitor != nil {
			out = append(out, sl.monitor.Snapshot())
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt != out[j].OpenedAt {
			return out[i].OpenedAt < out[j].OpenedAt
		}
		return out[i].Mint < out[j].Mint
	})
	return out
}
