package attempt

import "time"

// CallAttempt is the durable record of one scheduled or manual reflection
// call for a user on a calendar date.
//
// Invariants:
// - at most one attempt exists per (user_id, date)
// - an attempt with a status other than pending is never queued
// - resulting_entry_id is set only on completed attempts
//
// Storage recommendation (Postgres):
// - Table call_attempts with UNIQUE (user_id, date).
// - Terminal rows are never reopened; retries reopen missed rows only.
type CallAttempt struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	// Date is the calendar date (YYYY-MM-DD) in the user's timezone.
	Date string `json:"date" db:"date"`

	Source Source `json:"source" db:"source"`
	Status Status `json:"status" db:"status"`

	// AttemptCount increments on every dispatch, not on creation.
	AttemptCount int `json:"attempt_count" db:"attempt_count"`

	// LastAttemptAt is absent until the first dispatch.
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty" db:"last_attempt_at"`

	// ResultingEntryID references the journal entry materialized from a
	// completed session.
	ResultingEntryID string `json:"resulting_entry_id,omitempty" db:"resulting_entry_id"`

	// FailReason records why retries were exhausted; set only on failed.
	FailReason string `json:"fail_reason,omitempty" db:"fail_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusMissed    Status = "missed"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the status permits no further transitions.
// Missed attempts may be reopened for retry; completed and failed may not.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Source string

const (
	SourceManual    Source = "manual"
	SourceScheduled Source = "scheduled"
)

// Key is the natural unique key of an attempt.
func Key(userID, date string) string { return userID + "|" + date }
