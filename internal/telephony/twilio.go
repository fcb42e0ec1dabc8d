package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioProvider places and controls outbound calls via the Twilio REST API.
type TwilioProvider struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

func NewTwilioProvider(accountSID, authToken string) *TwilioProvider {
	return &TwilioProvider{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    twilioAPIBase,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) HealthCheck(ctx context.Context) error {
	// Fetching the account resource is the cheapest authenticated call.
	endpoint := fmt.Sprintf("%s/Accounts/%s.json", p.baseURL, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &ProviderError{Kind: ErrorKindFatal, Op: "health_check", Err: err}
	}
	req.SetBasicAuth(p.accountSID, p.authToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Kind: ErrorKindTransient, Op: "health_check", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Kind: classifyHTTPStatus(resp.StatusCode), Op: "health_check", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

func (p *TwilioProvider) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	form := url.Values{}
	form.Set("From", req.From)
	form.Set("To", req.To)
	form.Set("StatusCallback", req.StatusCallbackURL)
	form.Set("StatusCallbackEvent", "initiated ringing answered completed")
	// The call starts paused; the orchestrator drives prompts once the
	// answered status event opens the channel.
	form.Set("Twiml", "<Response><Pause length=\"60\"/></Response>")

	var out struct {
		Sid string `json:"sid"`
	}
	if err := p.post(ctx, "place_call", fmt.Sprintf("/Accounts/%s/Calls.json", p.accountSID), form, &out); err != nil {
		return PlaceCallResult{}, err
	}
	return PlaceCallResult{ProviderCallID: out.Sid}, nil
}

func (p *TwilioProvider) PlayAudio(ctx context.Context, req PlayAudioRequest) error {
	b := NewResponseBuilder()
	if req.AudioURL != "" {
		b.Play(req.AudioURL)
	} else {
		b.Say(req.Text)
	}
	if req.Record != nil {
		b.Record(req.Record.SilenceTimeoutSeconds, req.Record.MaxLengthSeconds, req.Record.CallbackURL)
		// Keep the call parked after the capture window so the next
		// prompt can be pushed onto the same call.
		b.Pause(60)
	}
	form := url.Values{}
	form.Set("Twiml", b.Render())
	return p.post(ctx, "play_audio", fmt.Sprintf("/Accounts/%s/Calls/%s.json", p.accountSID, req.ProviderCallID), form, nil)
}

func (p *TwilioProvider) EndCall(ctx context.Context, providerCallID string) error {
	form := url.Values{}
	form.Set("Status", "completed")
	return p.post(ctx, "end_call", fmt.Sprintf("/Accounts/%s/Calls/%s.json", p.accountSID, providerCallID), form, nil)
}

func (p *TwilioProvider) post(ctx context.Context, op, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return &ProviderError{Kind: ErrorKindFatal, Op: op, Err: err}
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Kind: ErrorKindTransient, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &ProviderError{Kind: ErrorKindTransient, Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{Kind: classifyHTTPStatus(resp.StatusCode), Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 256))}
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return &ProviderError{Kind: ErrorKindFatal, Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

// classifyHTTPStatus maps HTTP status codes onto retry classes. 429 and 5xx
// are worth retrying; 4xx means the request itself is wrong.
func classifyHTTPStatus(code int) ErrorKind {
	if code == http.StatusTooManyRequests || code >= 500 {
		return ErrorKindTransient
	}
	return ErrorKindFatal
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
