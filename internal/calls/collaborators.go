package calls

import "context"

// Collaborator boundaries for the live-call loop. All of these sit behind
// interfaces so the orchestrator never touches a vendor SDK directly.

// Synthesizer turns prompt text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audioURL string, err error)
}

// Transcriber produces a best-effort transcript for a captured utterance.
// Errors are treated as an empty transcript, never as a call failure.
type Transcriber interface {
	Transcribe(ctx context.Context, seg AudioSegment) (string, error)
}

// CompletenessChecker judges whether a transcript is a substantive answer
// to the prompt. When it errors, the orchestrator accepts the transcript
// as-is rather than blocking the call on an optional collaborator.
type CompletenessChecker interface {
	Check(ctx context.Context, promptText, transcript string) (complete bool, err error)
}

// SegmentTranscriber trusts transcripts computed upstream and carried on
// the segment itself.
type SegmentTranscriber struct{}

func (SegmentTranscriber) Transcribe(ctx context.Context, seg AudioSegment) (string, error) {
	return seg.Transcript, nil
}

// Channel is the duplex audio path for one live call. Events delivers
// capture and teardown signals; the channel owner closes it when the call
// ends.
type Channel interface {
	Play(ctx context.Context, req PlayRequest) error
	Events() <-chan Event
	Hangup(ctx context.Context) error
}

// PlayRequest prefers AudioURL when set; Text is the fallback for channels
// that synthesize on the provider side.
type PlayRequest struct {
	Text     string
	AudioURL string
}
