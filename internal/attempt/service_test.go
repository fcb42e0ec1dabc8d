package attempt

import (
	"context"
	"errors"
	"testing"
	"time"

	"reflectcall-platform/internal/queue"
)

func newTestService() (*Service, *queue.MemoryQueue) {
	q := queue.NewMemoryQueue()
	svc := NewService(NewMemoryRepo(), q)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return svc, q
}

func TestCreateAttempt_DuplicateKeyFails(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateAttempt(ctx, "alice", "2025-01-15", SourceScheduled); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateAttempt(ctx, "alice", "2025-01-15", SourceManual); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	// A different date for the same user is a different attempt.
	if _, err := svc.CreateAttempt(ctx, "alice", "2025-01-16", SourceScheduled); err != nil {
		t.Fatalf("create second date: %v", err)
	}
}

func TestCreateAttempt_RejectsInvalidArgs(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateAttempt(ctx, "", "2025-01-15", SourceManual); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := svc.CreateAttempt(ctx, "alice", "15-01-2025", SourceManual); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for bad date, got %v", err)
	}
	if _, err := svc.CreateAttempt(ctx, "alice", "2025-01-15", Source("webhook")); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for bad source, got %v", err)
	}
}

func TestEnqueue_StampsDispatchState(t *testing.T) {
	svc, q := newTestService()
	ctx := context.Background()

	a, err := svc.CreateAttempt(ctx, "alice", "2025-01-15", SourceScheduled)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.AttemptCount != 0 || a.LastAttemptAt != nil {
		t.Fatalf("fresh attempt should not carry dispatch state: %+v", a)
	}

	out, err := svc.Enqueue(ctx, a.ID)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if out.AttemptCount != 1 {
		t.Fatalf("expected attempt count 1, got %d", out.AttemptCount)
	}
	if out.LastAttemptAt == nil {
		t.Fatalf("expected last_attempt_at to be set")
	}
	if n, _ := q.Len(ctx); n != 1 {
		t.Fatalf("expected queue length 1, got %d", n)
	}

	// Re-enqueueing a queued attempt violates the membership precondition.
	if _, err := svc.Enqueue(ctx, a.ID); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestEnqueue_RejectsNonPending(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, _ := svc.CreateAttempt(ctx, "alice", "2025-01-15", SourceScheduled)
	if _, err := svc.MarkMissed(ctx, "alice", "2025-01-15"); err != nil {
		t.Fatalf("mark missed: %v", err)
	}
	if _, err := svc.Enqueue(ctx, a.ID); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestMarkCompleted_DequeuesAndRecordsEntry(t *testing.T) {
	svc, q := newTestService()
	ctx := context.Background()

	a, _ := svc.CreateAttempt(ctx, "alice", "2025-01-15", SourceScheduled)
	if _, err := svc.Enqueue(ctx, a.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if n, _ := q.Len(ctx); n != 1 {
		t.Fatalf("expected queue length 1, got %d", n)
	}

	out, err := svc.MarkCompleted(ctx, "alice", "2025-01-15", "entry-1")
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if out.Status != StatusCompleted || out.ResultingEntryID != "entry-1" {
		t.Fatalf("unexpected attempt: %+v", out)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestTerminalTransitions_NeverOverwriteTerminal(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _ = svc.CreateAttempt(ctx, "alice", "2025-01-15", SourceScheduled)
	if _, err := svc.MarkCompleted(ctx, "alice", "2025-01-15", "entry-1"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if _, err := svc.MarkMissed(ctx, "alice", "2025-01-15"); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
	if _, err := svc.MarkFailed(ctx, "alice", "2025-01-15", "late failure"); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}

	a, _ := svc.Get(ctx, "alice", "2025-01-15")
	if a.Status != StatusCompleted || a.ResultingEntryID != "entry-1" {
		t.Fatalf("terminal state was mutated: %+v", a)
	}
}

func TestMarkMissed_IdempotentQueueRemoval(t *testing.T) {
	svc, q := newTestService()
	ctx := context.Background()

	// Never-queued attempt: removal is a no-op, status still transitions.
	_, _ = svc.CreateAttempt(ctx, "alice", "2025-01-15", SourceScheduled)
	out, err := svc.MarkMissed(ctx, "alice", "2025-01-15")
	if err != nil {
		t.Fatalf("mark missed: %v", err)
	}
	if out.Status != StatusMissed {
		t.Fatalf("expected missed, got %s", out.Status)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestRequeueForRetry_ReopensMissed(t *testing.T) {
	svc, q := newTestService()
	ctx := context.Background()

	a, _ := svc.CreateAttempt(ctx, "alice", "2025-01-15", SourceScheduled)
	_, _ = svc.Enqueue(ctx, a.ID)
	if _, _, err := q.Pop(ctx); err != nil {
		t.Fatalf("pop: %v", err)
	}
	if _, err := svc.MarkMissed(ctx, "alice", "2025-01-15"); err != nil {
		t.Fatalf("mark missed: %v", err)
	}

	out, err := svc.RequeueForRetry(ctx, a.ID)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if out.Status != StatusPending {
		t.Fatalf("expected pending after requeue, got %s", out.Status)
	}
	if out.AttemptCount != 2 {
		t.Fatalf("expected attempt count 2, got %d", out.AttemptCount)
	}
	if n, _ := q.Len(ctx); n != 1 {
		t.Fatalf("expected queued exactly once, got %d", n)
	}
}

func TestRequeueForRetry_RefusesTerminal(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, _ := svc.CreateAttempt(ctx, "alice", "2025-01-15", SourceScheduled)
	_, _ = svc.MarkFailed(ctx, "alice", "2025-01-15", "gave up")
	if _, err := svc.RequeueForRetry(ctx, a.ID); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestDeleteAttempt_RemovesQueueMembership(t *testing.T) {
	svc, q := newTestService()
	ctx := context.Background()

	a, _ := svc.CreateAttempt(ctx, "alice", "2025-01-15", SourceScheduled)
	_, _ = svc.Enqueue(ctx, a.ID)

	if err := svc.DeleteAttempt(ctx, "alice", "2025-01-15"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
	if err := svc.DeleteAttempt(ctx, "alice", "2025-01-15"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
