package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// AttemptsSummaryRequest requests aggregated call attempt metrics.
// UserID is optional; empty means fleet-wide.

type AttemptsSummaryRequest struct {
	UserID string    `json:"user_id,omitempty"`
	Range  TimeRange `json:"range"`
}

type AttemptsSummary struct {
	UserID string `json:"user_id,omitempty"`

	TotalAttempts     int `json:"total_attempts"`
	CompletedAttempts int `json:"completed_attempts"`
	MissedAttempts    int `json:"missed_attempts"`
	FailedAttempts    int `json:"failed_attempts"`
	PendingAttempts   int `json:"pending_attempts"`

	// TotalDials counts every placed call, including retries.
	TotalDials int `json:"total_dials"`

	CompletionRate float64 `json:"completion_rate"`
}

// SessionsSummaryRequest requests aggregated interview session metrics.

type SessionsSummaryRequest struct {
	UserID string    `json:"user_id,omitempty"`
	Range  TimeRange `json:"range"`
}

type SessionsSummary struct {
	UserID string `json:"user_id,omitempty"`

	TotalSessions     int `json:"total_sessions"`
	CompletedSessions int `json:"completed_sessions"`
	AbandonedSessions int `json:"abandoned_sessions"`

	TotalResponses          int     `json:"total_responses"`
	AverageResponsesPerCall float64 `json:"average_responses_per_call"`

	RatedSessions int     `json:"rated_sessions"`
	AverageRating float64 `json:"average_rating"`
}
