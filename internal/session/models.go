package session

import "time"

// Prompt is one question in a frozen session sequence.
type Prompt struct {
	ID   string `json:"id"`
	Text string `json:"text"`

	// IsRating marks the closing mood-rating prompt; rating prompts are
	// sorted after all regular prompts before the snapshot freezes.
	IsRating bool `json:"is_rating"`
}

// Response is one captured answer, in prompt order.
type Response struct {
	PromptID   string    `json:"prompt_id"`
	Answer     string    `json:"answer"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// IsTerminal reports whether the session accepts no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Snapshot is an immutable copy of a session's state, safe to hand to
// readers while the live session keeps moving.
type Snapshot struct {
	ID        string     `json:"id"`
	AttemptID string     `json:"attempt_id"`
	UserID    string     `json:"user_id"`
	Status    Status     `json:"status"`
	Prompts   []Prompt   `json:"prompts"`
	Cursor    int        `json:"cursor"`
	Responses []Response `json:"responses"`
	Rating    *int       `json:"rating,omitempty"`

	AbandonReason string `json:"abandon_reason,omitempty"`

	StartedAt time.Time `json:"started_at,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}
