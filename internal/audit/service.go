package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods exist.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records call lifecycle facts. The journal side and operators
// consume these; they are internal-only and never exposed to end users
// by default.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.UserID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogAttemptCreated records a new attempt entering the registry.
func (s *Service) LogAttemptCreated(ctx context.Context, userID, attemptID, source string) error {
	return s.Append(ctx, Event{
		UserID:    userID,
		Type:      EventTypeAttemptCreated,
		AttemptID: attemptID,
		Message:   "attempt created (" + source + ")",
	})
}

// LogSessionStarted records that an interview went live on a provider call.
func (s *Service) LogSessionStarted(ctx context.Context, userID, attemptID, sessionID, providerCallID string) error {
	return s.Append(ctx, Event{
		UserID:         userID,
		Type:           EventTypeSessionStarted,
		AttemptID:      attemptID,
		SessionID:      sessionID,
		ProviderCallID: providerCallID,
		Message:        "session started",
	})
}

// LogPromptAnswered records one answered prompt.
func (s *Service) LogPromptAnswered(ctx context.Context, userID, sessionID, promptID string) error {
	return s.Append(ctx, Event{
		UserID:    userID,
		Type:      EventTypePromptAnswered,
		SessionID: sessionID,
		PromptID:  promptID,
		Message:   "prompt answered",
	})
}

// LogSessionCompleted records a fully answered interview.
func (s *Service) LogSessionCompleted(ctx context.Context, userID, attemptID, sessionID string) error {
	return s.Append(ctx, Event{
		UserID:    userID,
		Type:      EventTypeSessionCompleted,
		AttemptID: attemptID,
		SessionID: sessionID,
		Message:   "session completed",
	})
}

// LogSessionAbandoned records an interview cut short, with the reason.
func (s *Service) LogSessionAbandoned(ctx context.Context, userID, attemptID, sessionID, reason string) error {
	return s.Append(ctx, Event{
		UserID:    userID,
		Type:      EventTypeSessionAbandoned,
		AttemptID: attemptID,
		SessionID: sessionID,
		Message:   reason,
	})
}

// LogAttemptFailed records a retries-exhausted attempt.
func (s *Service) LogAttemptFailed(ctx context.Context, userID, attemptID, reason string) error {
	return s.Append(ctx, Event{
		UserID:    userID,
		Type:      EventTypeAttemptFailed,
		AttemptID: attemptID,
		Message:   reason,
	})
}
