package journal

import (
	"context"
	"errors"
	"sync"
	"time"

	"reflectcall-platform/internal/session"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("journal: not found")
	ErrInvalidArgument = errors.New("journal: invalid argument")
)

// Entry is the journal record materialized from a completed reflection
// session. Entries are immutable once written.
type Entry struct {
	ID        string `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	AttemptID string `json:"attempt_id" db:"attempt_id"`
	SessionID string `json:"session_id" db:"session_id"`

	// Date is the attempt's calendar date (YYYY-MM-DD).
	Date string `json:"date" db:"date"`

	Responses []session.Response `json:"responses"`
	Rating    *int               `json:"rating,omitempty" db:"rating"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Materializer turns a completed session into a persisted journal entry and
// returns its id. The orchestrator writes the id back onto the attempt.
type Materializer interface {
	Materialize(ctx context.Context, snap session.Snapshot, date string) (entryID string, err error)
}

// Store is the persistence contract for entries.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Entry, error)
}

// Service implements Materializer on top of a Store.
type Service struct {
	store Store
	clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

func (s *Service) Materialize(ctx context.Context, snap session.Snapshot, date string) (string, error) {
	if s.store == nil {
		return "", errors.New("journal: store not configured")
	}
	if snap.Status != session.StatusCompleted {
		return "", ErrInvalidArgument
	}
	if snap.UserID == "" || date == "" {
		return "", ErrInvalidArgument
	}

	e := Entry{
		ID:        uuid.NewString(),
		UserID:    snap.UserID,
		AttemptID: snap.AttemptID,
		SessionID: snap.ID,
		Date:      date,
		Responses: snap.Responses,
		Rating:    snap.Rating,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return "", err
	}
	return e.ID, nil
}

// MemoryStore is an in-memory entry store for tests and early development.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]Entry{}}
}

func (m *MemoryStore) Insert(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	m.order = append(m.order, e.ID)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0)
	for i := len(m.order) - 1; i >= 0; i-- {
		e := m.entries[m.order[i]]
		if e.UserID != userID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
