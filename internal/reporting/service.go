package reporting

import (
	"context"
	"errors"
	"time"

	"reflectcall-platform/internal/attempt"
	"reflectcall-platform/internal/session"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// IMPORTANT:
// - Implementations should query immutable sources when possible
//   (finished attempts, terminal session snapshots).
// - An empty userID means no user filter.

type Repository interface {
	ListAttempts(ctx context.Context, userID string, from, to time.Time) ([]attempt.CallAttempt, error)
	ListSessions(ctx context.Context, userID string, from, to time.Time) ([]session.Snapshot, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) AttemptsSummary(ctx context.Context, req AttemptsSummaryRequest) (AttemptsSummary, error) {
	if err := validateRange(req.Range); err != nil {
		return AttemptsSummary{}, err
	}
	if s.repo == nil {
		return AttemptsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListAttempts(ctx, req.UserID, req.Range.From, req.Range.To)
	if err != nil {
		return AttemptsSummary{}, err
	}

	out := AttemptsSummary{UserID: req.UserID}
	for _, a := range rows {
		out.TotalAttempts++
		out.TotalDials += a.AttemptCount
		switch a.Status {
		case attempt.StatusCompleted:
			out.CompletedAttempts++
		case attempt.StatusMissed:
			out.MissedAttempts++
		case attempt.StatusFailed:
			out.FailedAttempts++
		case attempt.StatusPending:
			out.PendingAttempts++
		}
	}
	if out.TotalAttempts > 0 {
		out.CompletionRate = float64(out.CompletedAttempts) / float64(out.TotalAttempts)
	}
	return out, nil
}

func (s *Service) SessionsSummary(ctx context.Context, req SessionsSummaryRequest) (SessionsSummary, error) {
	if err := validateRange(req.Range); err != nil {
		return SessionsSummary{}, err
	}
	if s.repo == nil {
		return SessionsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListSessions(ctx, req.UserID, req.Range.From, req.Range.To)
	if err != nil {
		return SessionsSummary{}, err
	}

	out := SessionsSummary{UserID: req.UserID}
	ratingSum := 0
	for _, snap := range rows {
		out.TotalSessions++
		out.TotalResponses += len(snap.Responses)
		switch snap.Status {
		case session.StatusCompleted:
			out.CompletedSessions++
		case session.StatusAbandoned:
			out.AbandonedSessions++
		}
		if snap.Rating != nil {
			out.RatedSessions++
			ratingSum += *snap.Rating
		}
	}
	if out.TotalSessions > 0 {
		out.AverageResponsesPerCall = float64(out.TotalResponses) / float64(out.TotalSessions)
	}
	if out.RatedSessions > 0 {
		out.AverageRating = float64(ratingSum) / float64(out.RatedSessions)
	}
	return out, nil
}

func validateRange(r TimeRange) error {
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) {
		return ErrInvalidRequest
	}
	return nil
}
