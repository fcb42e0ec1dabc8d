package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reflectcall-platform/internal/queue"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("attempt: not found")
	ErrAlreadyExists      = errors.New("attempt: already exists")
	ErrPreconditionFailed = errors.New("attempt: precondition failed")
	ErrInvalidArgument    = errors.New("attempt: invalid argument")
)

// Service owns the call attempt registry and its coupling to the dispatch
// queue.
//
// Invariant: an attempt is never both terminal and queued. Every terminal
// transition removes the id from the queue before writing the status, so a
// crash between the two steps can only leave a pending, unqueued attempt.
// The scheduler recovers that state by re-enqueueing.
type Service struct {
	repo  Repository
	queue queue.Queue
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, q queue.Queue) *Service {
	return &Service{repo: repo, queue: q, clock: time.Now}
}

// CreateAttempt registers a new attempt for (user, date) with status pending
// and attempt count zero. Fails with ErrAlreadyExists when the key is taken.
func (s *Service) CreateAttempt(ctx context.Context, userID, date string, source Source) (CallAttempt, error) {
	if userID == "" || date == "" {
		return CallAttempt{}, ErrInvalidArgument
	}
	if source != SourceManual && source != SourceScheduled {
		return CallAttempt{}, ErrInvalidArgument
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return CallAttempt{}, fmt.Errorf("%w: bad date %q", ErrInvalidArgument, date)
	}

	now := s.clock().UTC()
	a := CallAttempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      date,
		Source:    source,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, a); err != nil {
		return CallAttempt{}, err
	}
	return a, nil
}

// DeleteAttempt removes the record and, if queued, its queue membership.
func (s *Service) DeleteAttempt(ctx context.Context, userID, date string) error {
	a, err := s.repo.GetByKey(ctx, userID, date)
	if err != nil {
		return err
	}
	if _, err := s.queue.Remove(ctx, a.ID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, userID, date)
}

// Enqueue appends a pending, unqueued attempt to the dispatch queue,
// incrementing its attempt count and stamping last_attempt_at.
func (s *Service) Enqueue(ctx context.Context, attemptID string) (CallAttempt, error) {
	a, err := s.repo.GetByID(ctx, attemptID)
	if err != nil {
		return CallAttempt{}, err
	}
	if a.Status != StatusPending {
		return CallAttempt{}, fmt.Errorf("%w: status is %s", ErrPreconditionFailed, a.Status)
	}

	// The pending check and the push are two steps, so a terminal
	// transition racing in between can briefly leave a terminal attempt
	// queued. The dispatcher re-reads status after popping and drops such
	// stale members.
	if err := s.queue.Push(ctx, attemptID); err != nil {
		if errors.Is(err, queue.ErrAlreadyQueued) {
			return CallAttempt{}, fmt.Errorf("%w: already queued", ErrPreconditionFailed)
		}
		return CallAttempt{}, err
	}

	now := s.clock().UTC()
	out, err := s.repo.Update(ctx, attemptID, func(a *CallAttempt) error {
		a.AttemptCount++
		a.LastAttemptAt = &now
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		// Keep the invariant: a failed stamp must not leave a phantom member.
		_, _ = s.queue.Remove(ctx, attemptID)
		return CallAttempt{}, err
	}
	return out, nil
}

// RequeueForRetry re-enqueues an attempt after a failed dispatch. A missed
// attempt transitions back to pending first; completed and failed do not.
func (s *Service) RequeueForRetry(ctx context.Context, attemptID string) (CallAttempt, error) {
	a, err := s.repo.GetByID(ctx, attemptID)
	if err != nil {
		return CallAttempt{}, err
	}
	if a.Status.IsTerminal() {
		return CallAttempt{}, fmt.Errorf("%w: status is %s", ErrPreconditionFailed, a.Status)
	}
	if a.Status == StatusMissed {
		now := s.clock().UTC()
		if _, err := s.repo.Update(ctx, attemptID, func(a *CallAttempt) error {
			a.Status = StatusPending
			a.UpdatedAt = now
			return nil
		}); err != nil {
			return CallAttempt{}, err
		}
	}
	return s.Enqueue(ctx, attemptID)
}

// MarkMissed records that the user was not reached. Queue removal is
// idempotent; the status write is guarded against terminal overwrites.
func (s *Service) MarkMissed(ctx context.Context, userID, date string) (CallAttempt, error) {
	return s.terminalTransition(ctx, userID, date, func(a *CallAttempt) error {
		a.Status = StatusMissed
		return nil
	})
}

// MarkCompleted records the journal entry materialized from the attempt's
// session and closes the attempt.
func (s *Service) MarkCompleted(ctx context.Context, userID, date, entryID string) (CallAttempt, error) {
	if entryID == "" {
		return CallAttempt{}, ErrInvalidArgument
	}
	return s.terminalTransition(ctx, userID, date, func(a *CallAttempt) error {
		a.Status = StatusCompleted
		a.ResultingEntryID = entryID
		return nil
	})
}

// MarkFailed is the retries-exhausted disposition, distinct from missed.
// The reason is kept for operator visibility; failed attempts are never
// silently dropped.
func (s *Service) MarkFailed(ctx context.Context, userID, date, reason string) (CallAttempt, error) {
	if reason == "" {
		return CallAttempt{}, ErrInvalidArgument
	}
	return s.terminalTransition(ctx, userID, date, func(a *CallAttempt) error {
		a.Status = StatusFailed
		a.FailReason = reason
		return nil
	})
}

func (s *Service) terminalTransition(ctx context.Context, userID, date string, apply func(*CallAttempt) error) (CallAttempt, error) {
	a, err := s.repo.GetByKey(ctx, userID, date)
	if err != nil {
		return CallAttempt{}, err
	}

	// Queue removal first; see the invariant note on Service.
	if _, err := s.queue.Remove(ctx, a.ID); err != nil {
		return CallAttempt{}, err
	}

	now := s.clock().UTC()
	return s.repo.Update(ctx, a.ID, func(a *CallAttempt) error {
		if a.Status.IsTerminal() {
			return fmt.Errorf("%w: already %s", ErrPreconditionFailed, a.Status)
		}
		if err := apply(a); err != nil {
			return err
		}
		a.UpdatedAt = now
		return nil
	})
}

// Get returns the attempt for (user, date).
func (s *Service) Get(ctx context.Context, userID, date string) (CallAttempt, error) {
	return s.repo.GetByKey(ctx, userID, date)
}

// GetByID returns the attempt by id.
func (s *Service) GetByID(ctx context.Context, id string) (CallAttempt, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByUser returns all attempts for a user.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]CallAttempt, error) {
	return s.repo.ListByUser(ctx, userID)
}

// QueueMembers exposes the queue contents for operational visibility.
func (s *Service) QueueMembers(ctx context.Context) ([]string, error) {
	return s.queue.Members(ctx)
}
