package session

import (
	"errors"
	"testing"
)

func threePrompts() []Prompt {
	return []Prompt{
		{ID: "p1", Text: "What went well today?"},
		{ID: "p2", Text: "What would you do differently?"},
		{ID: "p3", Text: "Anything else on your mind?"},
	}
}

func TestStart_RequiresNonEmptySnapshot(t *testing.T) {
	s := New("att-1", "alice")
	if err := s.Start(nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if s.Status() != StatusNotStarted {
		t.Fatalf("expected not_started, got %s", s.Status())
	}

	if err := s.Start(threePrompts()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Status() != StatusInProgress {
		t.Fatalf("expected in_progress, got %s", s.Status())
	}
	// A second start is invalid.
	if err := s.Start(threePrompts()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestRecordResponse_EnforcesCursorOrder(t *testing.T) {
	s := New("att-1", "alice")
	if err := s.Start(threePrompts()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := s.RecordResponse("p1", "shipped the feature"); err != nil {
		t.Fatalf("record p1: %v", err)
	}
	// Cursor is at p2 now; answering p3 is out of order and changes nothing.
	if err := s.RecordResponse("p3", "skipping ahead"); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}

	snap := s.Snapshot()
	if snap.Cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", snap.Cursor)
	}
	if len(snap.Responses) != 1 || snap.Responses[0].PromptID != "p1" {
		t.Fatalf("unexpected responses: %+v", snap.Responses)
	}
}

func TestComplete_RevalidatesPromptCount(t *testing.T) {
	s := New("att-1", "alice")
	prompts := threePrompts()
	_ = s.Start(prompts)
	_ = s.RecordResponse("p1", "a")

	// Completion with prompts still unanswered must fail.
	if err := s.Complete(len(prompts)); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	_ = s.RecordResponse("p2", "b")
	_ = s.RecordResponse("p3", "c")
	if err := s.Complete(len(prompts)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if s.Status() != StatusCompleted {
		t.Fatalf("expected completed, got %s", s.Status())
	}

	// A duplicate completion callback is a no-op.
	if err := s.Complete(len(prompts)); err != nil {
		t.Fatalf("expected idempotent complete, got %v", err)
	}
}

func TestAbandon_IsIdempotentAndPreservesResponses(t *testing.T) {
	s := New("att-1", "alice")
	_ = s.Start(threePrompts())
	_ = s.RecordResponse("p1", "a")

	if err := s.Abandon("hangup"); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	snap := s.Snapshot()
	if snap.Status != StatusAbandoned || snap.AbandonReason != "hangup" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	// Abandoning again, possibly from a racing teardown signal, changes nothing.
	if err := s.Abandon("provider disconnect"); err != nil {
		t.Fatalf("expected idempotent abandon, got %v", err)
	}
	snap = s.Snapshot()
	if snap.AbandonReason != "hangup" {
		t.Fatalf("abandon reason was overwritten: %q", snap.AbandonReason)
	}
	if len(snap.Responses) != 1 {
		t.Fatalf("responses changed: %+v", snap.Responses)
	}

	// Recording after abandonment is invalid.
	if err := s.RecordResponse("p2", "late"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestAbandon_NeverDowngradesCompleted(t *testing.T) {
	s := New("att-1", "alice")
	_ = s.Start([]Prompt{{ID: "p1", Text: "only"}})
	_ = s.RecordResponse("p1", "done")
	_ = s.Complete(1)

	if err := s.Abandon("late disconnect event"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if s.Status() != StatusCompleted {
		t.Fatalf("completed was downgraded to %s", s.Status())
	}
}

func TestSetRating_OnlyOnRatingPrompt(t *testing.T) {
	s := New("att-1", "alice")
	prompts := []Prompt{
		{ID: "p1", Text: "What went well?"},
		{ID: "p2", Text: "What was hard?"},
		{ID: "pr", Text: "How do you feel, -2 to 2?", IsRating: true},
	}
	_ = s.Start(prompts)

	// Cursor on a regular prompt: rating is rejected.
	if err := s.SetRating(1); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	_ = s.RecordResponse("p1", "a")
	_ = s.RecordResponse("p2", "b")

	if err := s.SetRating(3); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}
	if err := s.SetRating(-2); err != nil {
		t.Fatalf("set rating: %v", err)
	}
	_ = s.RecordResponse("pr", "minus two")
	if err := s.Complete(3); err != nil {
		t.Fatalf("complete: %v", err)
	}

	snap := s.Snapshot()
	if snap.Rating == nil || *snap.Rating != -2 {
		t.Fatalf("expected rating -2, got %+v", snap.Rating)
	}
}

func TestAbandonMidRating_KeepsAnswersAndNoRating(t *testing.T) {
	s := New("att-1", "alice")
	prompts := []Prompt{
		{ID: "p1", Text: "q1"},
		{ID: "p2", Text: "q2"},
		{ID: "pr", Text: "rating", IsRating: true},
	}
	_ = s.Start(prompts)
	_ = s.RecordResponse("p1", "a")
	_ = s.RecordResponse("p2", "b")

	if err := s.Abandon("hangup"); err != nil {
		t.Fatalf("abandon: %v", err)
	}

	snap := s.Snapshot()
	if snap.Status != StatusAbandoned {
		t.Fatalf("expected abandoned, got %s", snap.Status)
	}
	if len(snap.Responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(snap.Responses))
	}
	if snap.Rating != nil {
		t.Fatalf("expected no rating, got %d", *snap.Rating)
	}
}

func TestCompletionDoesNotRequireRating(t *testing.T) {
	s := New("att-1", "alice")
	prompts := []Prompt{
		{ID: "p1", Text: "q1"},
		{ID: "pr", Text: "rating", IsRating: true},
	}
	_ = s.Start(prompts)
	_ = s.RecordResponse("p1", "a")
	// The rating prompt is answered with words the parser could not map;
	// the cursor still advances and completion succeeds with no rating.
	_ = s.RecordResponse("pr", "not sure")
	if err := s.Complete(2); err != nil {
		t.Fatalf("complete without rating: %v", err)
	}
	if snap := s.Snapshot(); snap.Rating != nil {
		t.Fatalf("expected absent rating, got %d", *snap.Rating)
	}
}
