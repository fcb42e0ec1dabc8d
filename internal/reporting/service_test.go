package reporting

import (
	"context"
	"testing"
	"time"

	"reflectcall-platform/internal/attempt"
	"reflectcall-platform/internal/session"
)

func window() TimeRange {
	return TimeRange{
		From: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAttemptsSummary(t *testing.T) {
	repo := NewMemoryRepo()
	at := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	repo.Attempts = []attempt.CallAttempt{
		{ID: "a1", UserID: "u1", Status: attempt.StatusCompleted, AttemptCount: 1, CreatedAt: at},
		{ID: "a2", UserID: "u1", Status: attempt.StatusMissed, AttemptCount: 2, CreatedAt: at},
		{ID: "a3", UserID: "u1", Status: attempt.StatusFailed, AttemptCount: 4, CreatedAt: at},
		{ID: "a4", UserID: "u2", Status: attempt.StatusCompleted, AttemptCount: 1, CreatedAt: at},
	}

	out, err := NewService(repo).AttemptsSummary(context.Background(), AttemptsSummaryRequest{UserID: "u1", Range: window()})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.TotalAttempts != 3 {
		t.Fatalf("expected 3 attempts for u1, got %d", out.TotalAttempts)
	}
	if out.CompletedAttempts != 1 || out.MissedAttempts != 1 || out.FailedAttempts != 1 {
		t.Fatalf("unexpected breakdown: %+v", out)
	}
	if out.TotalDials != 7 {
		t.Fatalf("expected 7 dials, got %d", out.TotalDials)
	}
	if out.CompletionRate < 0.33 || out.CompletionRate > 0.34 {
		t.Fatalf("unexpected completion rate %f", out.CompletionRate)
	}
}

func TestSessionsSummary(t *testing.T) {
	repo := NewMemoryRepo()
	at := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	two := 2
	minusOne := -1
	repo.Sessions = []session.Snapshot{
		{ID: "s1", UserID: "u1", Status: session.StatusCompleted, Responses: make([]session.Response, 3), Rating: &two, StartedAt: at},
		{ID: "s2", UserID: "u1", Status: session.StatusAbandoned, Responses: make([]session.Response, 1), StartedAt: at},
		{ID: "s3", UserID: "u1", Status: session.StatusCompleted, Responses: make([]session.Response, 2), Rating: &minusOne, StartedAt: at},
	}

	out, err := NewService(repo).SessionsSummary(context.Background(), SessionsSummaryRequest{UserID: "u1", Range: window()})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.TotalSessions != 3 || out.CompletedSessions != 2 || out.AbandonedSessions != 1 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if out.TotalResponses != 6 {
		t.Fatalf("expected 6 responses, got %d", out.TotalResponses)
	}
	if out.AverageResponsesPerCall != 2 {
		t.Fatalf("expected average 2, got %f", out.AverageResponsesPerCall)
	}
	if out.RatedSessions != 2 || out.AverageRating != 0.5 {
		t.Fatalf("unexpected ratings: %+v", out)
	}
}

func TestSummaryRejectsInvalidRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	_, err := svc.AttemptsSummary(context.Background(), AttemptsSummaryRequest{})
	if err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	bad := TimeRange{From: time.Now(), To: time.Now().Add(-time.Hour)}
	_, err = svc.SessionsSummary(context.Background(), SessionsSummaryRequest{Range: bad})
	if err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestSummariesOutsideRangeExcluded(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Attempts = []attempt.CallAttempt{
		{ID: "a1", UserID: "u1", Status: attempt.StatusCompleted, AttemptCount: 1, CreatedAt: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)},
	}
	out, err := NewService(repo).AttemptsSummary(context.Background(), AttemptsSummaryRequest{Range: window()})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.TotalAttempts != 0 {
		t.Fatalf("attempt outside the range must be excluded")
	}
}
