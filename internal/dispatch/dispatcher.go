package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reflectcall-platform/internal/attempt"
	"reflectcall-platform/internal/audit"
	"reflectcall-platform/internal/calls"
	"reflectcall-platform/internal/queue"
	"reflectcall-platform/internal/telephony"
)

// ChannelOpener attaches a duplex audio channel to an answered call.
type ChannelOpener interface {
	Open(ctx context.Context, providerCallID string) (calls.Channel, error)
}

type Config struct {
	FromNumber        string
	StatusCallbackURL string
}

// Dispatcher pulls pending attempts off the queue, places outbound calls,
// and reacts to provider status events: answered calls hand off to the
// orchestrator, unreached calls go through the retry policy.
//
// Status events arrive at-least-once and can duplicate or arrive after the
// in-flight entry is gone; every handler path treats an unknown call id as
// a no-op.
type Dispatcher struct {
	attempts  *attempt.Service
	q         queue.Queue
	provider  telephony.Provider
	orch      *calls.Orchestrator
	opener    ChannelOpener
	directory Directory
	slots     SlotLimiter
	audit     *audit.Service
	policy    RetryPolicy
	cfg       Config
	log       *slog.Logger

	// afterFunc and launch are seams for tests; production uses
	// time.AfterFunc and a plain goroutine.
	afterFunc func(time.Duration, func()) *time.Timer
	launch    func(func())

	mu       sync.Mutex
	inflight map[string]string
}

type DispatcherDeps struct {
	Attempts  *attempt.Service
	Queue     queue.Queue
	Provider  telephony.Provider
	Orch      *calls.Orchestrator
	Opener    ChannelOpener
	Directory Directory
	Slots     SlotLimiter
	Audit     *audit.Service
	Policy    RetryPolicy
	Config    Config
	Logger    *slog.Logger
}

func NewDispatcher(d DispatcherDeps) *Dispatcher {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	slots := d.Slots
	if slots == nil {
		slots = UnlimitedSlots{}
	}
	return &Dispatcher{
		attempts:  d.Attempts,
		q:         d.Queue,
		provider:  d.Provider,
		orch:      d.Orch,
		opener:    d.Opener,
		directory: d.Directory,
		slots:     slots,
		audit:     d.Audit,
		policy:    d.Policy,
		cfg:       d.Config,
		log:       log,
		afterFunc: time.AfterFunc,
		launch:    func(f func()) { go f() },
		inflight:  make(map[string]string),
	}
}

// DispatchNext places a call for the head of the queue. It returns false
// when the queue is empty or no live-call slot is free.
func (d *Dispatcher) DispatchNext(ctx context.Context) (bool, error) {
	ok, err := d.slots.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("dispatch: acquire slot: %w", err)
	}
	if !ok {
		return false, nil
	}

	id, ok, err := d.q.Pop(ctx)
	if err != nil {
		d.releaseSlot(ctx)
		return false, fmt.Errorf("dispatch: pop queue: %w", err)
	}
	if !ok {
		d.releaseSlot(ctx)
		return false, nil
	}

	att, err := d.attempts.GetByID(ctx, id)
	if err != nil {
		d.releaseSlot(ctx)
		if errors.Is(err, attempt.ErrNotFound) {
			d.log.Warn("queued attempt no longer exists", "attempt_id", id)
			return true, nil
		}
		return true, fmt.Errorf("dispatch: load attempt: %w", err)
	}
	if att.Status != attempt.StatusPending {
		// Stale member; the terminal transition already owns this attempt.
		d.releaseSlot(ctx)
		d.log.Warn("skipping non-pending queued attempt", "attempt_id", id, "status", att.Status)
		return true, nil
	}

	prof, err := d.directory.Profile(ctx, att.UserID)
	if err != nil {
		d.releaseSlot(ctx)
		d.failAttempt(ctx, att, fmt.Sprintf("no dialable profile: %v", err))
		return true, nil
	}

	res, err := d.provider.PlaceCall(ctx, telephony.PlaceCallRequest{
		AttemptID:         att.ID,
		UserID:            att.UserID,
		From:              d.cfg.FromNumber,
		To:                prof.Phone,
		StatusCallbackURL: d.cfg.StatusCallbackURL,
	})
	if err != nil {
		d.releaseSlot(ctx)
		if telephony.IsTransient(err) {
			d.log.Warn("place call failed, consulting retry policy", "attempt_id", att.ID, "err", err)
			d.handleDispatchFailure(ctx, att.ID, fmt.Sprintf("place call: %v", err))
		} else {
			d.failAttempt(ctx, att, fmt.Sprintf("place call: %v", err))
		}
		return true, nil
	}

	d.mu.Lock()
	d.inflight[res.ProviderCallID] = att.ID
	d.mu.Unlock()
	d.log.Info("call placed", "attempt_id", att.ID, "provider_call_id", res.ProviderCallID, "to", prof.Phone)
	return true, nil
}

// HandleStatusEvent implements telephony.StatusSink.
func (d *Dispatcher) HandleStatusEvent(ctx context.Context, ev telephony.StatusEvent) error {
	d.mu.Lock()
	attemptID, known := d.inflight[ev.ProviderCallID]
	if known && ev.Status.IsFinal() {
		delete(d.inflight, ev.ProviderCallID)
	}
	d.mu.Unlock()

	if !known {
		d.log.Warn("status event for unknown call", "provider_call_id", ev.ProviderCallID, "status", ev.Status)
		return nil
	}

	switch {
	case ev.Status == telephony.CallStatusInProgress:
		return d.startInterview(ctx, attemptID, ev.ProviderCallID)
	case ev.Status == telephony.CallStatusCompleted:
		// The orchestrator finalized (or is finalizing) the session.
		d.releaseSlot(ctx)
		return nil
	case ev.Status.IsDispatchFailure():
		d.releaseSlot(ctx)
		d.handleDispatchFailure(ctx, attemptID, fmt.Sprintf("call %s", ev.Status))
		return nil
	default:
		// queued / initiated / ringing: nothing to do yet.
		return nil
	}
}

func (d *Dispatcher) startInterview(ctx context.Context, attemptID, providerCallID string) error {
	att, err := d.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("dispatch: load attempt: %w", err)
	}

	ch, err := d.opener.Open(ctx, providerCallID)
	if err != nil {
		if errors.Is(err, telephony.ErrChannelExists) {
			// Re-delivered in-progress callback; the interview is already
			// running on this call. The slot stays held until a final status.
			d.log.Warn("duplicate in-progress callback", "provider_call_id", providerCallID)
			return nil
		}
		d.log.Error("channel open failed", "provider_call_id", providerCallID, "err", err)
		_ = d.provider.EndCall(ctx, providerCallID)
		d.releaseSlot(ctx)
		d.handleDispatchFailure(ctx, attemptID, fmt.Sprintf("channel open: %v", err))
		return nil
	}

	d.launch(func() {
		req := calls.RunRequest{AttemptID: att.ID, UserID: att.UserID, ProviderCallID: providerCallID}
		if err := d.orch.Run(context.WithoutCancel(ctx), req, ch); err != nil {
			d.log.Error("interview run failed", "attempt_id", att.ID, "err", err)
		}
	})
	return nil
}

// handleDispatchFailure applies the retry policy after a dial that never
// reached the user. Attempts already moved off pending are left alone.
func (d *Dispatcher) handleDispatchFailure(ctx context.Context, attemptID, reason string) {
	att, err := d.attempts.GetByID(ctx, attemptID)
	if err != nil {
		d.log.Error("load attempt for retry decision", "attempt_id", attemptID, "err", err)
		return
	}
	if att.Status != attempt.StatusPending {
		return
	}

	dec := d.policy.Decide(att.AttemptCount)
	if !dec.Retry {
		d.failAttempt(ctx, att, fmt.Sprintf("%s after %d attempts", reason, att.AttemptCount))
		return
	}

	d.log.Info("scheduling retry", "attempt_id", attemptID, "attempt_count", att.AttemptCount, "delay", dec.Delay)
	d.afterFunc(dec.Delay, func() {
		if _, err := d.attempts.RequeueForRetry(context.Background(), attemptID); err != nil {
			d.log.Error("requeue for retry failed", "attempt_id", attemptID, "err", err)
		}
	})
}

func (d *Dispatcher) failAttempt(ctx context.Context, att attempt.CallAttempt, reason string) {
	if _, err := d.attempts.MarkFailed(ctx, att.UserID, att.Date, reason); err != nil {
		d.log.Error("mark failed", "attempt_id", att.ID, "err", err)
		return
	}
	_ = d.audit.LogAttemptFailed(ctx, att.UserID, att.ID, reason)
	d.log.Info("attempt failed permanently", "attempt_id", att.ID, "reason", reason)
}

func (d *Dispatcher) releaseSlot(ctx context.Context) {
	if err := d.slots.Release(ctx); err != nil {
		d.log.Warn("release live call slot", "err", err)
	}
}

// Inflight returns the attempt id a provider call is serving, if any.
func (d *Dispatcher) Inflight(providerCallID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.inflight[providerCallID]
	return id, ok
}

// RunLoop drains the queue on every tick until ctx is canceled.
func (d *Dispatcher) RunLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for {
				dispatched, err := d.DispatchNext(ctx)
				if err != nil {
					d.log.Error("dispatch", "err", err)
					break
				}
				if !dispatched {
					break
				}
			}
		}
	}
}
