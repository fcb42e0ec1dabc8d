package telephony

import (
	"context"
	"errors"
	"sync"
	"time"

	"reflectcall-platform/internal/calls"
)

var ErrChannelExists = errors.New("telephony: channel already open")

// ProviderChannel is the duplex channel for one live call, built from the
// REST provider (outbound audio) and the webhook feed (inbound events).
type ProviderChannel struct {
	provider Provider
	callID   string
	events   chan calls.Event
	record   *RecordParams

	closeOnce sync.Once
}

// Play pushes the prompt onto the live call and, when the hub carries
// record settings, opens the answer capture behind it.
func (c *ProviderChannel) Play(ctx context.Context, req calls.PlayRequest) error {
	return c.provider.PlayAudio(ctx, PlayAudioRequest{
		ProviderCallID: c.callID,
		AudioURL:       req.AudioURL,
		Text:           req.Text,
		Record:         c.record,
	})
}

func (c *ProviderChannel) Events() <-chan calls.Event { return c.events }

func (c *ProviderChannel) Hangup(ctx context.Context) error {
	return c.provider.EndCall(ctx, c.callID)
}

func (c *ProviderChannel) close() {
	c.closeOnce.Do(func() { close(c.events) })
}

// ChannelHub tracks open channels by provider call id and routes webhook
// deliveries into them. It implements both the dispatcher's channel opener
// and StatusSink (final statuses tear the channel down).
type ChannelHub struct {
	provider Provider

	// Recording, when set, is stamped onto every opened channel so each
	// played prompt is followed by an answer capture.
	Recording *RecordParams

	mu       sync.Mutex
	channels map[string]*ProviderChannel
}

func NewChannelHub(p Provider) *ChannelHub {
	return &ChannelHub{provider: p, channels: make(map[string]*ProviderChannel)}
}

func (h *ChannelHub) Open(ctx context.Context, providerCallID string) (calls.Channel, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[providerCallID]; ok {
		return nil, ErrChannelExists
	}
	ch := &ProviderChannel{
		provider: h.provider,
		callID:   providerCallID,
		events:   make(chan calls.Event, 16),
		record:   h.Recording,
	}
	h.channels[providerCallID] = ch
	return ch, nil
}

// PushAudio delivers a captured utterance. Unknown call ids and full
// buffers are dropped; the orchestrator's capture timeout covers the loss.
func (h *ChannelHub) PushAudio(providerCallID string, seg calls.AudioSegment) bool {
	return h.push(providerCallID, calls.Event{Kind: calls.EventAudio, Audio: seg, At: time.Now()})
}

// Disconnect signals teardown and removes the channel. Idempotent.
func (h *ChannelHub) Disconnect(providerCallID string) {
	h.mu.Lock()
	ch, ok := h.channels[providerCallID]
	delete(h.channels, providerCallID)
	h.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch.events <- calls.Event{Kind: calls.EventDisconnect, At: time.Now()}:
	default:
	}
	ch.close()
}

// HandleStatusEvent implements StatusSink: a final status means no more
// audio is coming, so the channel is torn down.
func (h *ChannelHub) HandleStatusEvent(ctx context.Context, ev StatusEvent) error {
	if ev.Status.IsFinal() {
		h.Disconnect(ev.ProviderCallID)
	}
	return nil
}

func (h *ChannelHub) push(providerCallID string, ev calls.Event) bool {
	h.mu.Lock()
	ch, ok := h.channels[providerCallID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch.events <- ev:
		return true
	default:
		return false
	}
}

// MultiSink fans one status event out to several consumers, in order.
type MultiSink []StatusSink

func (m MultiSink) HandleStatusEvent(ctx context.Context, ev StatusEvent) error {
	var firstErr error
	for _, s := range m {
		if err := s.HandleStatusEvent(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
