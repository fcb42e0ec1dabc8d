package telephony

import (
	"bytes"
	"encoding/xml"
)

// Minimal Twilio Markup Language builder for outbound interview calls.
// It intentionally avoids any provider SDK dependency.
//
// Only include primitives we need at the adapter boundary.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlPlay struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type twimlRecord struct {
	XMLName     xml.Name `xml:"Record"`
	Timeout     int      `xml:"timeout,attr,omitempty"`
	MaxLength   int      `xml:"maxLength,attr,omitempty"`
	PlayBeep    bool     `xml:"playBeep,attr"`
	ActionURL   string   `xml:"action,attr,omitempty"`
	Transcribe  bool     `xml:"transcribe,attr"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// ResponseBuilder accumulates TwiML verbs for one call turn.
type ResponseBuilder struct {
	verbs []any
}

func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{}
}

func (b *ResponseBuilder) Say(text string) *ResponseBuilder {
	b.verbs = append(b.verbs, twimlSay{Text: text})
	return b
}

func (b *ResponseBuilder) Play(audioURL string) *ResponseBuilder {
	b.verbs = append(b.verbs, twimlPlay{URL: audioURL})
	return b
}

func (b *ResponseBuilder) Pause(seconds int) *ResponseBuilder {
	b.verbs = append(b.verbs, twimlPause{Length: seconds})
	return b
}

// Record opens a capture window. timeoutSec ends the recording after that
// much trailing silence; maxLengthSec caps the whole answer.
func (b *ResponseBuilder) Record(timeoutSec, maxLengthSec int, actionURL string) *ResponseBuilder {
	b.verbs = append(b.verbs, twimlRecord{
		Timeout:    timeoutSec,
		MaxLength:  maxLengthSec,
		ActionURL:  actionURL,
		Transcribe: true,
	})
	return b
}

func (b *ResponseBuilder) Hangup() *ResponseBuilder {
	b.verbs = append(b.verbs, twimlHangup{})
	return b
}

func (b *ResponseBuilder) Render() string {
	r := twimlResponse{Verbs: b.verbs}
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		// xml.Encoder only fails on unencodable values; our verb structs
		// cannot produce that.
		return "<Response></Response>"
	}
	_ = enc.Flush()
	return buf.String()
}
