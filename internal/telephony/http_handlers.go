package telephony

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"reflectcall-platform/internal/calls"
	"reflectcall-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// StatusSink consumes provider status events. The dispatcher implements it;
// keeping it an interface here avoids an import cycle and keeps this package
// a pure adapter.
type StatusSink interface {
	HandleStatusEvent(ctx context.Context, ev StatusEvent) error
}

// TwilioWebhookHandler converts Twilio status callbacks to internal events
// and delegates to the sink.
//
// No business logic here.
//
// Delivery semantics:
// - Twilio retries callbacks on non-2xx, so events arrive at-least-once.
//   The sink must tolerate duplicates; this handler always acks parseable
//   requests even when the sink fails, and relies on logging for diagnosis.
type TwilioWebhookHandler struct {
	Sink StatusSink

	Now func() time.Time
}

func (h TwilioWebhookHandler) HandleStatusCallback(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Now == nil {
		h.Now = time.Now
	}
	if h.Sink == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status sink not configured"})
		return
	}

	form, err := ParseTwilioStatusCallback(c.Request)
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if form.CallSid == "" {
		log.Warn("twilio webhook missing CallSid")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing CallSid"})
		return
	}

	ev := form.ToStatusEvent(h.Now())
	if err := h.Sink.HandleStatusEvent(c.Request.Context(), ev); err != nil {
		// Ack anyway: a retried delivery would hit the same error, and the
		// sink already treats unknown or stale events as no-ops.
		log.Error("status event handling failed", "provider_call_id", ev.ProviderCallID, "status", ev.Status, "err", err)
	}

	c.Status(http.StatusNoContent)
}

// TwilioRecordingHandler routes recording callbacks into the live channel
// for the call. Late deliveries for finished calls are dropped.
type TwilioRecordingHandler struct {
	Hub *ChannelHub
}

func (h TwilioRecordingHandler) HandleRecordingCallback(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Hub == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "channel hub not configured"})
		return
	}

	form, err := ParseTwilioRecordingCallback(c.Request)
	if err != nil || form.CallSid == "" {
		log.Warn("twilio recording callback parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	duration, _ := strconv.Atoi(form.RecordingDuration)
	delivered := h.Hub.PushAudio(form.CallSid, calls.AudioSegment{
		RecordingURL:    form.RecordingURL,
		DurationSeconds: duration,
		Transcript:      form.TranscriptionText,
	})
	if !delivered {
		log.Warn("recording for inactive call dropped", "provider_call_id", form.CallSid)
	}

	c.Status(http.StatusNoContent)
}
