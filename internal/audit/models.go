package audit

import "time"

// Event is an immutable, append-only record of a call lifecycle fact.
//
// Invariants:
// - Events are never updated or deleted.
// - Emission is best-effort; do not block call flows on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.
type Event struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	// Type indicates the lifecycle fact being recorded.
	Type EventType `json:"type" db:"type"`

	// Target identifiers (optional, depending on the event type).
	AttemptID      string `json:"attempt_id,omitempty" db:"attempt_id"`
	SessionID      string `json:"session_id,omitempty" db:"session_id"`
	PromptID       string `json:"prompt_id,omitempty" db:"prompt_id"`
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAttemptCreated   EventType = "attempt_created"
	EventTypeAttemptFailed    EventType = "attempt_failed"
	EventTypeSessionStarted   EventType = "session_started"
	EventTypePromptAnswered   EventType = "prompt_answered"
	EventTypeSessionCompleted EventType = "session_completed"
	EventTypeSessionAbandoned EventType = "session_abandoned"
)
