package telephony

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider defines the provider-agnostic telephony interface used by the
// dispatcher and orchestrator.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Keep request/response types provider-agnostic; store provider raw
//   payloads in RawPayload/metadata if needed.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// PlaceCall starts an outbound call to the user's phone. Status
	// updates arrive later through the webhook as StatusEvents keyed by
	// the returned provider call id.
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)

	// PlayAudio plays synthesized prompt audio into a live call.
	PlayAudio(ctx context.Context, req PlayAudioRequest) error

	// EndCall hangs up a live call.
	EndCall(ctx context.Context, providerCallID string) error
}

type PlaceCallRequest struct {
	// AttemptID correlates the provider call back to the registry record.
	AttemptID string `json:"attempt_id"`
	UserID    string `json:"user_id"`

	// From and To are E.164.
	From string `json:"from"`
	To   string `json:"to"`

	// StatusCallbackURL receives call status updates.
	StatusCallbackURL string `json:"status_callback_url"`
}

type PlaceCallResult struct {
	// ProviderCallID is the provider's unique identifier for this call.
	ProviderCallID string `json:"provider_call_id"`
}

type PlayAudioRequest struct {
	ProviderCallID string `json:"provider_call_id"`

	// AudioURL points at synthesized audio; Text is the fallback for
	// providers that synthesize on their side.
	AudioURL string `json:"audio_url,omitempty"`
	Text     string `json:"text,omitempty"`

	// Record, when set, opens an answer capture right after playback.
	// The provider transcribes the recording and posts it to CallbackURL.
	Record *RecordParams `json:"record,omitempty"`
}

// RecordParams controls the answer capture that follows a prompt.
type RecordParams struct {
	// SilenceTimeoutSeconds is how much trailing silence ends the answer.
	SilenceTimeoutSeconds int `json:"silence_timeout_seconds"`
	// MaxLengthSeconds caps the whole answer.
	MaxLengthSeconds int `json:"max_length_seconds"`
	// CallbackURL receives the recording and its transcription.
	CallbackURL string `json:"callback_url"`
}

// StatusEvent is a provider-agnostic call status update. Providers deliver
// these at-least-once and in no guaranteed order; consumers must treat every
// event as a state-guarded transition, never an unconditional write.
type StatusEvent struct {
	ProviderCallID string `json:"provider_call_id"`

	// AttemptID is echoed back from PlaceCall metadata when the provider
	// supports it; may be empty on inbound-only events.
	AttemptID string `json:"attempt_id,omitempty"`

	Status CallStatus `json:"status"`

	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	DurationSeconds int `json:"duration_seconds,omitempty"`

	// OccurredAt is the provider event time.
	OccurredAt time.Time `json:"occurred_at"`

	// RawPayload is optional for debugging/audit; store as JSON string.
	RawPayload string `json:"raw_payload,omitempty"`
}

type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusNoAnswer   CallStatus = "no_answer"
	CallStatusBusy       CallStatus = "busy"
	CallStatusFailed     CallStatus = "failed"
	CallStatusCanceled   CallStatus = "canceled"
)

// IsDispatchFailure reports whether the status means the user was never
// reached, which routes the attempt into the retry scheduler.
func (s CallStatus) IsDispatchFailure() bool {
	switch s {
	case CallStatusNoAnswer, CallStatusBusy, CallStatusFailed, CallStatusCanceled:
		return true
	default:
		return false
	}
}

// IsFinal reports whether no further status updates follow.
func (s CallStatus) IsFinal() bool {
	return s == CallStatusCompleted || s.IsDispatchFailure()
}

// ErrorKind classifies provider failures for retry decisions.
type ErrorKind string

const (
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindFatal     ErrorKind = "fatal"
)

// ProviderError wraps a provider failure with its retry classification.
type ProviderError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("telephony: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == ErrorKindTransient
	}
	return false
}
