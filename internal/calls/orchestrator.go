package calls

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"reflectcall-platform/internal/attempt"
	"reflectcall-platform/internal/audit"
	"reflectcall-platform/internal/journal"
	"reflectcall-platform/internal/prompts"
	"reflectcall-platform/internal/session"
)

const (
	greetingText = "Hi, it's time for your daily reflection."
	farewellText = "Thanks for sharing. Talk to you tomorrow. Goodbye."
)

// Policy bundles the tunable timing knobs of the live-call loop.
type Policy struct {
	// CaptureTimeout bounds how long one capture window stays open.
	CaptureTimeout time.Duration
	// IdleTimeout bounds how long a stalled call can hold a live session.
	// Expiry is treated as a disconnect.
	IdleTimeout time.Duration
	// RepromptLimit is how many times one prompt may be replayed after an
	// empty or insubstantial answer.
	RepromptLimit int
}

// Orchestrator drives one live call: it plays prompts, captures and
// transcribes answers, advances the session cursor, and finalizes both the
// session and the call attempt.
//
// Ordering hazard handled here: the provider can report "call ended" while
// the normal completion path is still running. Every terminal write below is
// status-guarded, so whichever transition lands first wins and the loser is
// a no-op.
type Orchestrator struct {
	attempts   *attempt.Service
	sessions   session.Store
	prompts    prompts.Provider
	journal    journal.Materializer
	audit      *audit.Service
	synth      Synthesizer
	transcribe Transcriber
	checker    CompletenessChecker
	registry   *Registry
	policy     Policy
	log        *slog.Logger

	clock func() time.Time
}

type OrchestratorDeps struct {
	Attempts    *attempt.Service
	Sessions    session.Store
	Prompts     prompts.Provider
	Journal     journal.Materializer
	Audit       *audit.Service
	Synth       Synthesizer
	Transcriber Transcriber
	Checker     CompletenessChecker
	Registry    *Registry
	Policy      Policy
	Logger      *slog.Logger
}

func NewOrchestrator(d OrchestratorDeps) *Orchestrator {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := d.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	return &Orchestrator{
		attempts:   d.Attempts,
		sessions:   d.Sessions,
		prompts:    d.Prompts,
		journal:    d.Journal,
		audit:      d.Audit,
		synth:      d.Synth,
		transcribe: d.Transcriber,
		checker:    d.Checker,
		registry:   reg,
		policy:     d.Policy,
		log:        log,
		clock:      time.Now,
	}
}

// Registry exposes live-call scratch records for operational reads.
func (o *Orchestrator) Records() *Registry { return o.registry }

type RunRequest struct {
	AttemptID      string
	UserID         string
	ProviderCallID string
}

// Run conducts the interview over an answered call. It blocks until the
// session reaches a terminal state and the attempt record is finalized.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest, ch Channel) error {
	log := o.log.With("attempt_id", req.AttemptID, "provider_call_id", req.ProviderCallID)

	att, err := o.attempts.GetByID(ctx, req.AttemptID)
	if err != nil {
		_ = ch.Hangup(ctx)
		return fmt.Errorf("calls: load attempt: %w", err)
	}

	list, err := o.prompts.ActivePrompts(ctx, req.UserID)
	if err != nil || len(list) == 0 {
		_ = ch.Hangup(ctx)
		reason := "no active prompts"
		if err != nil {
			reason = fmt.Sprintf("prompt load failed: %v", err)
		}
		if _, ferr := o.attempts.MarkFailed(ctx, att.UserID, att.Date, reason); ferr != nil {
			log.Error("mark failed after prompt load error", "err", ferr)
		}
		_ = o.audit.LogAttemptFailed(ctx, req.UserID, req.AttemptID, reason)
		return fmt.Errorf("calls: %s", reason)
	}
	ordered := prompts.SortForSession(list)

	sess := session.New(req.AttemptID, req.UserID)
	if err := sess.Start(ordered); err != nil {
		_ = ch.Hangup(ctx)
		return fmt.Errorf("calls: start session: %w", err)
	}
	if err := o.sessions.Put(ctx, sess); err != nil {
		_ = ch.Hangup(ctx)
		return fmt.Errorf("calls: store session: %w", err)
	}

	rec := &PhoneCallRecord{
		ProviderCallID: req.ProviderCallID,
		AttemptID:      req.AttemptID,
		UserID:         req.UserID,
		SessionID:      sess.ID(),
		StartedAt:      o.clock(),
	}
	if err := o.registry.Register(rec); err != nil {
		_ = ch.Hangup(ctx)
		return fmt.Errorf("calls: register call: %w", err)
	}
	defer o.registry.Release(req.ProviderCallID)

	_ = o.audit.LogSessionStarted(ctx, req.UserID, req.AttemptID, sess.ID(), req.ProviderCallID)
	log.Info("session started", "session_id", sess.ID(), "prompts", len(ordered))

	idle := time.NewTimer(o.policy.IdleTimeout)
	defer idle.Stop()

	answered := 0
	first := true
	for {
		p, ok := sess.CurrentPrompt()
		if !ok {
			break
		}

		text := p.Text
		if first {
			text = greetingText + " " + text
			first = false
		}

		transcript, disconnected, reason := o.runTurn(ctx, ch, rec, idle, p, text, log)
		if disconnected {
			return o.finalizeAbandoned(ctx, ch, sess, att, reason, answered, log)
		}

		if p.IsRating {
			if v, ok := ParseRating(transcript); ok {
				if err := sess.SetRating(v); err != nil {
					log.Warn("rating rejected", "prompt_id", p.ID, "err", err)
				}
			}
		}
		if err := sess.RecordResponse(p.ID, transcript); err != nil {
			return o.finalizeAbandoned(ctx, ch, sess, att, fmt.Sprintf("record response failed: %v", err), answered, log)
		}
		if strings.TrimSpace(transcript) != "" {
			answered++
		}
		_ = o.audit.LogPromptAnswered(ctx, req.UserID, sess.ID(), p.ID)
	}

	if err := sess.Complete(len(ordered)); err != nil {
		// A teardown signal won the race; leave the session as it is.
		return o.finalizeAbandoned(ctx, ch, sess, att, fmt.Sprintf("completion rejected: %v", err), answered, log)
	}

	_ = ch.Play(ctx, PlayRequest{Text: farewellText})
	_ = ch.Hangup(ctx)

	snap := sess.Snapshot()
	entryID, err := o.journal.Materialize(ctx, snap, att.Date)
	if err != nil {
		// The session is completed but unmaterialized; the attempt stays
		// pending so a sweep can pick it up again.
		log.Error("journal materialization failed", "session_id", sess.ID(), "err", err)
		return fmt.Errorf("calls: materialize entry: %w", err)
	}
	if _, err := o.attempts.MarkCompleted(ctx, att.UserID, att.Date, entryID); err != nil {
		log.Error("mark completed failed", "entry_id", entryID, "err", err)
		return fmt.Errorf("calls: mark completed: %w", err)
	}
	_ = o.audit.LogSessionCompleted(ctx, req.UserID, req.AttemptID, sess.ID())
	log.Info("session completed", "session_id", sess.ID(), "entry_id", entryID, "answered", answered)
	return nil
}

// runTurn plays one prompt and captures the answer, replaying the prompt up
// to the re-prompt limit when the answer is empty or judged insubstantial.
func (o *Orchestrator) runTurn(ctx context.Context, ch Channel, rec *PhoneCallRecord, idle *time.Timer, p session.Prompt, text string, log *slog.Logger) (transcript string, disconnected bool, reason string) {
	reprompts := 0
	for {
		play := PlayRequest{Text: text}
		if text == p.Text {
			if url, ok := rec.CachedAudio(p.ID); ok {
				play.AudioURL = url
			} else if o.synth != nil {
				url, err := o.synth.Synthesize(ctx, text)
				if err != nil {
					log.Warn("synthesis failed, using text fallback", "prompt_id", p.ID, "err", err)
				} else {
					rec.CacheAudio(p.ID, url)
					play.AudioURL = url
				}
			}
		} else if o.synth != nil {
			// Greeting-prefixed playback happens once; only bare prompt
			// audio goes in the cache.
			url, err := o.synth.Synthesize(ctx, text)
			if err != nil {
				log.Warn("synthesis failed, using text fallback", "prompt_id", p.ID, "err", err)
			} else {
				play.AudioURL = url
			}
		}
		if err := ch.Play(ctx, play); err != nil {
			return "", true, fmt.Sprintf("playback failed: %v", err)
		}

		transcript, disconnected, reason = o.capture(ctx, ch, idle, log)
		if disconnected {
			return
		}

		accepted := strings.TrimSpace(transcript) != ""
		if accepted && o.checker != nil {
			complete, err := o.checker.Check(ctx, p.Text, transcript)
			if err != nil {
				log.Warn("completeness check unavailable, accepting answer", "prompt_id", p.ID, "err", err)
			} else if !complete {
				accepted = false
			}
		}
		if accepted || reprompts >= o.policy.RepromptLimit {
			return transcript, false, ""
		}
		reprompts++
		// Re-prompts repeat the bare prompt, never the greeting.
		text = p.Text
		log.Info("re-prompting", "prompt_id", p.ID)
	}
}

// capture waits for one utterance or end-of-turn signal. An expired capture
// window yields an empty transcript; an expired idle timer or a teardown
// event is a disconnect.
func (o *Orchestrator) capture(ctx context.Context, ch Channel, idle *time.Timer, log *slog.Logger) (string, bool, string) {
	window := time.NewTimer(o.policy.CaptureTimeout)
	defer window.Stop()
	for {
		select {
		case ev, ok := <-ch.Events():
			if !ok || ev.Kind == EventDisconnect {
				return "", true, "user hung up"
			}
			resetTimer(idle, o.policy.IdleTimeout)
			switch ev.Kind {
			case EventAudio:
				transcript, err := o.transcribe.Transcribe(ctx, ev.Audio)
				if err != nil {
					log.Warn("transcription failed, treating as silence", "err", err)
					return "", false, ""
				}
				return transcript, false, ""
			case EventStop:
				return "", false, ""
			}
		case <-window.C:
			return "", false, ""
		case <-idle.C:
			return "", true, "idle timeout"
		case <-ctx.Done():
			return "", true, "canceled: " + ctx.Err().Error()
		}
	}
}

// finalizeAbandoned applies the terminal transition for a torn-down call.
// The attempt is reopened as missed regardless of partial answers; whatever
// was captured stays on the abandoned session snapshot.
func (o *Orchestrator) finalizeAbandoned(ctx context.Context, ch Channel, sess *session.Session, att attempt.CallAttempt, reason string, answered int, log *slog.Logger) error {
	_ = ch.Hangup(ctx)

	if err := sess.Abandon(reason); err != nil {
		log.Error("abandon failed", "session_id", sess.ID(), "err", err)
	}
	if sess.Status() == session.StatusCompleted {
		// Normal completion won the race; the completed path owns
		// finalization.
		return nil
	}

	_ = o.audit.LogSessionAbandoned(ctx, att.UserID, att.ID, sess.ID(), reason)
	if _, err := o.attempts.MarkMissed(ctx, att.UserID, att.Date); err != nil {
		log.Error("mark missed failed", "err", err)
		return fmt.Errorf("calls: mark missed: %w", err)
	}
	log.Info("session abandoned", "session_id", sess.ID(), "reason", reason, "answered", answered)
	return nil
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// ratingPhrases is checked in order so that compound phrases match before
// their suffixes.
var ratingPhrases = []struct {
	phrase string
	value  int
}{
	{"minus two", -2},
	{"negative two", -2},
	{"minus one", -1},
	{"negative one", -1},
	{"plus two", 2},
	{"plus one", 1},
	{"neutral", 0},
	{"zero", 0},
	{"two", 2},
	{"one", 1},
}

// ParseRating extracts a rating in [-2, 2] from a spoken transcript.
func ParseRating(transcript string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(transcript))
	if s == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(strings.TrimPrefix(s, "+")); err == nil {
		if v >= -2 && v <= 2 {
			return v, true
		}
		return 0, false
	}
	for _, rp := range ratingPhrases {
		if strings.Contains(s, rp.phrase) {
			return rp.value, true
		}
	}
	return 0, false
}
