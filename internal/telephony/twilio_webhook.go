package telephony

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TwilioStatusForm captures the subset of status callback fields we care
// about. Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/api/call-resource#statuscallback
//
// Keep it minimal and provider-adapter-only.
// Business logic (retry decisions, session transitions) is not made here.

type TwilioStatusForm struct {
	CallSid       string
	AccountSid    string
	From          string
	To            string
	Direction     string
	CallStatus    string
	CallDuration  string
	ApiVersion    string
	Timestamp     string
	SequenceNumber string
}

func ParseTwilioStatusCallback(r *http.Request) (TwilioStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioStatusForm{}, err
	}
	f := TwilioStatusForm{
		CallSid:        r.PostFormValue("CallSid"),
		AccountSid:     r.PostFormValue("AccountSid"),
		From:           normalizePhone(r.PostFormValue("From")),
		To:             normalizePhone(r.PostFormValue("To")),
		Direction:      r.PostFormValue("Direction"),
		CallStatus:     r.PostFormValue("CallStatus"),
		CallDuration:   r.PostFormValue("CallDuration"),
		ApiVersion:     r.PostFormValue("ApiVersion"),
		Timestamp:      r.PostFormValue("Timestamp"),
		SequenceNumber: r.PostFormValue("SequenceNumber"),
	}
	return f, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return s
}

// ToStatusEvent maps the raw Twilio form onto the provider-agnostic event.
func (f TwilioStatusForm) ToStatusEvent(occurredAt time.Time) StatusEvent {
	raw, _ := json.Marshal(f)
	duration, _ := strconv.Atoi(f.CallDuration)
	return StatusEvent{
		ProviderCallID:  f.CallSid,
		Status:          mapTwilioCallStatus(f.CallStatus),
		From:            f.From,
		To:              f.To,
		DurationSeconds: duration,
		OccurredAt:      occurredAt,
		RawPayload:      string(raw),
	}
}

// TwilioRecordingForm captures recording callback fields, including the
// optional transcription Twilio produces when <Record transcribe> is set.

type TwilioRecordingForm struct {
	CallSid           string
	RecordingSid      string
	RecordingURL      string
	RecordingDuration string
	TranscriptionText string
}

func ParseTwilioRecordingCallback(r *http.Request) (TwilioRecordingForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioRecordingForm{}, err
	}
	return TwilioRecordingForm{
		CallSid:           r.PostFormValue("CallSid"),
		RecordingSid:      r.PostFormValue("RecordingSid"),
		RecordingURL:      r.PostFormValue("RecordingUrl"),
		RecordingDuration: r.PostFormValue("RecordingDuration"),
		TranscriptionText: r.PostFormValue("TranscriptionText"),
	}, nil
}

func mapTwilioCallStatus(s string) CallStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued":
		return CallStatusQueued
	case "initiated":
		return CallStatusInitiated
	case "ringing":
		return CallStatusRinging
	case "in-progress", "answered":
		return CallStatusInProgress
	case "completed":
		return CallStatusCompleted
	case "no-answer":
		return CallStatusNoAnswer
	case "busy":
		return CallStatusBusy
	case "canceled":
		return CallStatusCanceled
	default:
		return CallStatusFailed
	}
}
