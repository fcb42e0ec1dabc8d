package reporting

import (
	"context"
	"time"

	"reflectcall-platform/internal/attempt"
	"reflectcall-platform/internal/session"
)

// AttemptSource and SessionSource are the slices of the operational stores
// the read side needs. attempt.Repository and session.Store satisfy them.

type AttemptSource interface {
	ListInRange(ctx context.Context, userID string, from, to time.Time) ([]attempt.CallAttempt, error)
}

type SessionSource interface {
	ListInRange(ctx context.Context, userID string, from, to time.Time) ([]session.Snapshot, error)
}

// StoreRepo serves summaries straight off the operational stores, so the
// operator view reflects the same rows the call engine writes.
type StoreRepo struct {
	attempts AttemptSource
	sessions SessionSource
}

func NewStoreRepo(a AttemptSource, s SessionSource) *StoreRepo {
	return &StoreRepo{attempts: a, sessions: s}
}

func (r *StoreRepo) ListAttempts(ctx context.Context, userID string, from, to time.Time) ([]attempt.CallAttempt, error) {
	return r.attempts.ListInRange(ctx, userID, from, to)
}

func (r *StoreRepo) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]session.Snapshot, error) {
	return r.sessions.ListInRange(ctx, userID, from, to)
}
