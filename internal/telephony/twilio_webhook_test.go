package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseTwilioStatusCallback(t *testing.T) {
	body := strings.NewReader("CallSid=CA123&From=%2B15551234567&To=%2B15557654321&CallStatus=no-answer&CallDuration=0")
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseTwilioStatusCallback(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA123" {
		t.Fatalf("expected CallSid")
	}
	if form.From != "+15551234567" || form.To != "+15557654321" {
		t.Fatalf("unexpected from/to: %q %q", form.From, form.To)
	}

	ev := form.ToStatusEvent(time.Unix(1700000000, 0).UTC())
	if ev.ProviderCallID != "CA123" {
		t.Fatalf("expected provider call id")
	}
	if ev.Status != CallStatusNoAnswer {
		t.Fatalf("expected no_answer, got %s", ev.Status)
	}
	if !ev.Status.IsDispatchFailure() {
		t.Fatalf("no_answer should be a dispatch failure")
	}
}

func TestMapTwilioCallStatus(t *testing.T) {
	cases := map[string]CallStatus{
		"queued":      CallStatusQueued,
		"ringing":     CallStatusRinging,
		"in-progress": CallStatusInProgress,
		"answered":    CallStatusInProgress,
		"completed":   CallStatusCompleted,
		"busy":        CallStatusBusy,
		"no-answer":   CallStatusNoAnswer,
		"canceled":    CallStatusCanceled,
		"garbage":     CallStatusFailed,
	}
	for in, want := range cases {
		if got := mapTwilioCallStatus(in); got != want {
			t.Fatalf("mapTwilioCallStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestStatusFinality(t *testing.T) {
	if CallStatusRinging.IsFinal() {
		t.Fatalf("ringing must not be final")
	}
	if !CallStatusCompleted.IsFinal() {
		t.Fatalf("completed must be final")
	}
	if CallStatusCompleted.IsDispatchFailure() {
		t.Fatalf("completed is not a dispatch failure")
	}
	if !CallStatusBusy.IsFinal() {
		t.Fatalf("busy must be final")
	}
}
