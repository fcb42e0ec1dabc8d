package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("session: not found")
	ErrInvalidState  = errors.New("session: invalid state")
	ErrOutOfOrder    = errors.New("session: response out of order")
	ErrInvalidRating = errors.New("session: invalid rating")
)

// Session is the live record of one reflection interview.
//
// All transitions go through the methods below, guarded by one mutex, so
// provider webhook callbacks and the orchestrator's own turn loop can race
// freely: every externally triggered transition re-checks current state
// before applying anything. Once completed or abandoned the session is
// immutable.
type Session struct {
	mu sync.Mutex

	id        string
	attemptID string
	userID    string

	status    Status
	prompts   []Prompt
	cursor    int
	responses []Response
	rating    *int

	abandonReason string

	startedAt time.Time
	endedAt   time.Time

	clock func() time.Time
}

func New(attemptID, userID string) *Session {
	return &Session{
		id:        uuid.NewString(),
		attemptID: attemptID,
		userID:    userID,
		status:    StatusNotStarted,
		clock:     time.Now,
	}
}

func (s *Session) ID() string        { return s.id }
func (s *Session) AttemptID() string { return s.attemptID }

// Start freezes the prompt sequence and moves the session to in_progress.
// The snapshot must be non-empty; later edits to the user's prompt template
// never reach a started session.
func (s *Session) Start(promptSnapshot []Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusNotStarted {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, s.status)
	}
	if len(promptSnapshot) == 0 {
		return fmt.Errorf("%w: empty prompt snapshot", ErrInvalidState)
	}

	s.prompts = make([]Prompt, len(promptSnapshot))
	copy(s.prompts, promptSnapshot)
	s.status = StatusInProgress
	s.startedAt = s.clock().UTC()
	return nil
}

// RecordResponse appends the answer for the prompt at the cursor and
// advances it. A promptID that does not match the cursor fails with
// ErrOutOfOrder and leaves state unchanged, so turns stay serialized
// regardless of the order events physically arrive in.
func (s *Session) RecordResponse(promptID, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return fmt.Errorf("%w: record in %s", ErrInvalidState, s.status)
	}
	if s.cursor >= len(s.prompts) {
		return fmt.Errorf("%w: all prompts answered", ErrOutOfOrder)
	}
	if s.prompts[s.cursor].ID != promptID {
		return fmt.Errorf("%w: got %s, cursor at %s", ErrOutOfOrder, promptID, s.prompts[s.cursor].ID)
	}

	s.responses = append(s.responses, Response{
		PromptID:   promptID,
		Answer:     answer,
		RecordedAt: s.clock().UTC(),
	})
	s.cursor++
	return nil
}

// SetRating records the mood rating. Valid only while in progress and only
// when the cursor sits on a rating prompt; the value must be in -2..2.
func (s *Session) SetRating(value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return fmt.Errorf("%w: rate in %s", ErrInvalidState, s.status)
	}
	if s.cursor >= len(s.prompts) || !s.prompts[s.cursor].IsRating {
		return fmt.Errorf("%w: current prompt is not a rating prompt", ErrInvalidState)
	}
	if value < -2 || value > 2 {
		return fmt.Errorf("%w: %d", ErrInvalidRating, value)
	}

	v := value
	s.rating = &v
	return nil
}

// Complete closes the session. The expected prompt count re-validates the
// cursor so a duplicate or racing callback cannot complete a session with
// skipped prompts. Completing an already-completed session is a no-op;
// completing an abandoned one is an error.
func (s *Session) Complete(expectedPromptCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusCompleted {
		return nil
	}
	if s.status != StatusInProgress {
		return fmt.Errorf("%w: complete from %s", ErrInvalidState, s.status)
	}
	if s.cursor != expectedPromptCount {
		return fmt.Errorf("%w: cursor %d, expected %d", ErrInvalidState, s.cursor, expectedPromptCount)
	}

	s.status = StatusCompleted
	s.endedAt = s.clock().UTC()
	return nil
}

// Abandon moves the session to its abandoned terminal state, keeping
// whatever responses were captured. Abandoning a session that is already
// terminal is a successful no-op: call teardown signals race with normal
// completion, and the first terminal transition must win.
func (s *Session) Abandon(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.IsTerminal() {
		return nil
	}
	s.status = StatusAbandoned
	s.abandonReason = reason
	s.endedAt = s.clock().UTC()
	return nil
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CurrentPrompt returns the prompt at the cursor; ok is false when the
// cursor has moved past the last prompt.
func (s *Session) CurrentPrompt() (Prompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress || s.cursor >= len(s.prompts) {
		return Prompt{}, false
	}
	return s.prompts[s.cursor], true
}

// Snapshot returns an immutable copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:            s.id,
		AttemptID:     s.attemptID,
		UserID:        s.userID,
		Status:        s.status,
		Cursor:        s.cursor,
		AbandonReason: s.abandonReason,
		StartedAt:     s.startedAt,
		EndedAt:       s.endedAt,
	}
	snap.Prompts = make([]Prompt, len(s.prompts))
	copy(snap.Prompts, s.prompts)
	snap.Responses = make([]Response, len(s.responses))
	copy(snap.Responses, s.responses)
	if s.rating != nil {
		v := *s.rating
		snap.Rating = &v
	}
	return snap
}
