package calls

import (
	"sync"
	"time"
)

// PhoneCallRecord is the per-call scratch state held for the duration of one
// live call. It is not persisted; it exists so the orchestrator and the
// operational read endpoints can see what a live call is doing, and so the
// release path has one place to drop everything the call allocated.
//
// Invariants:
// - Exactly one record per provider call id.
// - Released on every exit path (completion, abandonment, crash sweep).
type PhoneCallRecord struct {
	ProviderCallID string    `json:"provider_call_id"`
	AttemptID      string    `json:"attempt_id"`
	UserID         string    `json:"user_id"`
	SessionID      string    `json:"session_id"`
	StartedAt      time.Time `json:"started_at"`

	// audioCache maps prompt id to synthesized audio URL so a re-prompt
	// does not synthesize the same text twice.
	mu         sync.Mutex
	audioCache map[string]string
}

func (r *PhoneCallRecord) CachedAudio(promptID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	url, ok := r.audioCache[promptID]
	return url, ok
}

func (r *PhoneCallRecord) CacheAudio(promptID, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.audioCache == nil {
		r.audioCache = make(map[string]string)
	}
	r.audioCache[promptID] = url
}

// EventKind classifies signals arriving from the duplex audio channel.
type EventKind string

const (
	// EventAudio carries a captured utterance.
	EventAudio EventKind = "audio"
	// EventStop is an explicit end-of-turn signal with no utterance.
	EventStop EventKind = "stop"
	// EventDisconnect means the far end is gone.
	EventDisconnect EventKind = "disconnect"
)

type Event struct {
	Kind  EventKind
	Audio AudioSegment
	At    time.Time
}

// AudioSegment references one captured utterance. Transcript is filled in
// when the capture pipeline already transcribed upstream (for example a
// provider transcription callback); otherwise the Transcriber collaborator
// produces it from the recording.
type AudioSegment struct {
	RecordingURL    string
	DurationSeconds int
	Transcript      string
}
