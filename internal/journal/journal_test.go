package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"reflectcall-platform/internal/session"
)

func completedSnapshot() session.Snapshot {
	rating := 1
	return session.Snapshot{
		ID:        "sess-1",
		AttemptID: "att-1",
		UserID:    "alice",
		Status:    session.StatusCompleted,
		Responses: []session.Response{
			{PromptID: "p1", Answer: "went well"},
			{PromptID: "p2", Answer: "slept more"},
		},
		Rating: &rating,
	}
}

func TestMaterialize_WritesEntry(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	id, err := svc.Materialize(context.Background(), completedSnapshot(), "2025-01-15")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if id == "" {
		t.Fatalf("expected entry id")
	}

	e, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.UserID != "alice" || e.Date != "2025-01-15" || e.SessionID != "sess-1" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if len(e.Responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(e.Responses))
	}
	if e.Rating == nil || *e.Rating != 1 {
		t.Fatalf("expected rating 1, got %+v", e.Rating)
	}
}

func TestMaterialize_RejectsNonCompletedSession(t *testing.T) {
	svc := NewService(NewMemoryStore())

	snap := completedSnapshot()
	snap.Status = session.StatusAbandoned
	if _, err := svc.Materialize(context.Background(), snap, "2025-01-15"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestMemoryStore_ListByUserNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Insert(ctx, Entry{ID: "e1", UserID: "alice", Date: "2025-01-14"})
	_ = store.Insert(ctx, Entry{ID: "e2", UserID: "alice", Date: "2025-01-15"})
	_ = store.Insert(ctx, Entry{ID: "e3", UserID: "bob", Date: "2025-01-15"})

	out, err := store.ListByUser(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 || out[0].ID != "e2" || out[1].ID != "e1" {
		t.Fatalf("unexpected list: %+v", out)
	}
}
