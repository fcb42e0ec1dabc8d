package session

import (
	"context"
	"sync"
	"time"
)

// Store keeps live and terminal sessions addressable by id and by attempt.
// Live sessions stay owned by the orchestrator; readers get snapshots.
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	GetByAttempt(ctx context.Context, attemptID string) (*Session, error)
	ListByUser(ctx context.Context, userID string) ([]Snapshot, error)
	// ListInRange returns snapshots of sessions started in [from, to).
	// An empty userID means no user filter; never-started sessions are
	// excluded.
	ListInRange(ctx context.Context, userID string, from, to time.Time) ([]Snapshot, error)
}

// MemoryStore is an in-memory session store.
type MemoryStore struct {
	mu        sync.Mutex
	byID      map[string]*Session
	byAttempt map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]*Session{}, byAttempt: map[string]*Session{}}
}

func (m *MemoryStore) Put(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.ID()] = s
	if s.AttemptID() != "" {
		m.byAttempt[s.AttemptID()] = s
	}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) GetByAttempt(ctx context.Context, attemptID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byAttempt[attemptID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0)
	for _, s := range m.byID {
		snap := s.Snapshot()
		if snap.UserID == userID {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListInRange(ctx context.Context, userID string, from, to time.Time) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0)
	for _, s := range m.byID {
		snap := s.Snapshot()
		if userID != "" && snap.UserID != userID {
			continue
		}
		if snap.StartedAt.Before(from) || !snap.StartedAt.Before(to) {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}
