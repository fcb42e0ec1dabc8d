package dispatch

import (
	"context"
	"testing"
	"time"

	"reflectcall-platform/internal/attempt"
	"reflectcall-platform/internal/audit"
	"reflectcall-platform/internal/queue"
	"reflectcall-platform/internal/schedule"
)

type fakeWindows struct {
	cfg schedule.Config
	err error
}

func (f fakeWindows) WindowConfig(ctx context.Context, userID string) (schedule.Config, error) {
	return f.cfg, f.err
}

func allDaySpans() schedule.Config {
	rec := make(map[time.Weekday][]schedule.ClockSpan)
	for d := time.Sunday; d <= time.Saturday; d++ {
		rec[d] = []schedule.ClockSpan{{StartMinute: 0, EndMinute: 24 * 60}}
	}
	return schedule.Config{Recurring: rec}
}

func newPlannerHarness(t *testing.T, cfg schedule.Config) (*Planner, *attempt.Service, *queue.MemoryQueue, *audit.MemoryRepo) {
	t.Helper()
	q := queue.NewMemoryQueue()
	attempts := attempt.NewService(attempt.NewMemoryRepo(), q)
	dir := NewMemoryDirectory()
	dir.Put(Profile{UserID: "u1", Phone: "+15551234567", Timezone: "UTC"})

	events := audit.NewMemoryRepo()
	p := NewPlanner(schedule.NewResolver(fakeWindows{cfg: cfg}), attempts, dir, audit.NewService(events), nil)
	p.clock = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }
	return p, attempts, q, events
}

func TestPlanner_EnqueuesInsideWindow(t *testing.T) {
	ctx := context.Background()
	p, attempts, q, _ := newPlannerHarness(t, allDaySpans())

	if err := p.PlanOnce(ctx); err != nil {
		t.Fatalf("plan: %v", err)
	}

	att, err := attempts.Get(ctx, "u1", "2026-08-29")
	if err != nil {
		t.Fatalf("expected scheduled attempt: %v", err)
	}
	if att.Source != attempt.SourceScheduled || att.AttemptCount != 1 {
		t.Fatalf("unexpected attempt: %+v", att)
	}
	if queued, _ := q.Contains(ctx, att.ID); !queued {
		t.Fatalf("expected attempt in queue")
	}
}

func TestPlanner_RepeatPlanningIsNoOp(t *testing.T) {
	ctx := context.Background()
	p, attempts, q, _ := newPlannerHarness(t, allDaySpans())

	for i := 0; i < 3; i++ {
		if err := p.PlanOnce(ctx); err != nil {
			t.Fatalf("plan %d: %v", i, err)
		}
	}

	att, _ := attempts.Get(ctx, "u1", "2026-08-29")
	if att.AttemptCount != 1 {
		t.Fatalf("repeat planning must not re-dial, count=%d", att.AttemptCount)
	}
	if n, _ := q.Len(ctx); n != 1 {
		t.Fatalf("expected a single queued id, len=%d", n)
	}
}

func TestPlanner_LeavesInFlightAttemptsAlone(t *testing.T) {
	ctx := context.Background()
	p, attempts, q, _ := newPlannerHarness(t, allDaySpans())

	if err := p.PlanOnce(ctx); err != nil {
		t.Fatalf("plan: %v", err)
	}
	// Simulate the dispatcher taking the attempt off the queue.
	if _, ok, _ := q.Pop(ctx); !ok {
		t.Fatalf("expected queued id")
	}

	if err := p.PlanOnce(ctx); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Fatalf("planner must not re-enqueue an in-flight attempt, len=%d", n)
	}

	att, _ := attempts.Get(ctx, "u1", "2026-08-29")
	if att.AttemptCount != 1 {
		t.Fatalf("unexpected dial count %d", att.AttemptCount)
	}
}

func TestPlanner_OutsideWindowDoesNothing(t *testing.T) {
	ctx := context.Background()
	cfg := schedule.Config{Recurring: map[time.Weekday][]schedule.ClockSpan{
		// Saturday 2026-08-29, but the window sits in the early morning.
		time.Saturday: {{StartMinute: 6 * 60, EndMinute: 7 * 60}},
	}}
	p, attempts, _, _ := newPlannerHarness(t, cfg)

	if err := p.PlanOnce(ctx); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, err := attempts.Get(ctx, "u1", "2026-08-29"); err == nil {
		t.Fatalf("no attempt expected outside the window")
	}
}

func TestPlanner_CustomOverrideSuppressesDay(t *testing.T) {
	ctx := context.Background()
	cfg := allDaySpans()
	cfg.Custom = map[string][]schedule.ClockSpan{"2026-08-29": {}}
	p, attempts, _, _ := newPlannerHarness(t, cfg)

	if err := p.PlanOnce(ctx); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, err := attempts.Get(ctx, "u1", "2026-08-29"); err == nil {
		t.Fatalf("empty override must suppress the call")
	}
}

func TestPlanner_AuditsCreatedAttempts(t *testing.T) {
	ctx := context.Background()
	p, attempts, _, events := newPlannerHarness(t, allDaySpans())

	for i := 0; i < 2; i++ {
		if err := p.PlanOnce(ctx); err != nil {
			t.Fatalf("plan %d: %v", i, err)
		}
	}

	att, err := attempts.Get(ctx, "u1", "2026-08-29")
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}

	created := 0
	for _, e := range events.Events() {
		if e.Type != audit.EventTypeAttemptCreated {
			continue
		}
		created++
		if e.UserID != "u1" || e.AttemptID != att.ID {
			t.Fatalf("unexpected audit event: %+v", e)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one attempt_created event, got %d", created)
	}
}
