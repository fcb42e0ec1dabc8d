package reporting

import (
	"context"
	"sync"
	"time"

	"reflectcall-platform/internal/attempt"
	"reflectcall-platform/internal/session"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early
// development.

type MemoryRepo struct {
	mu sync.Mutex

	Attempts []attempt.CallAttempt
	Sessions []session.Snapshot
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListAttempts(ctx context.Context, userID string, from, to time.Time) ([]attempt.CallAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]attempt.CallAttempt, 0)
	for _, a := range r.Attempts {
		if userID != "" && a.UserID != userID {
			continue
		}
		if !a.CreatedAt.IsZero() {
			if a.CreatedAt.Before(from) || !a.CreatedAt.Before(to) {
				continue
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *MemoryRepo) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]session.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Snapshot, 0)
	for _, s := range r.Sessions {
		if userID != "" && s.UserID != userID {
			continue
		}
		if !s.StartedAt.IsZero() {
			if s.StartedAt.Before(from) || !s.StartedAt.Before(to) {
				continue
			}
		}
		out = append(out, s)
	}
	return out, nil
}
