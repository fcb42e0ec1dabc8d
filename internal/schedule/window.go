package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// The resolver answers one question: for a given user and calendar date,
// in which time window(s) should a reflection call be attempted, and does
// that answer come from a one-off override or the weekly template.
//
// One-off windows set explicitly for a date always win over the recurring
// template, even when they are empty (an empty override means "no call
// that day").

var ErrNotFound = errors.New("schedule: window config not found")

// Mode says which configuration produced the resolved windows.
type Mode string

const (
	ModeRecurring Mode = "recurring"
	ModeCustom    Mode = "custom"
)

// ClockSpan is a window expressed as minutes since local midnight.
// End is exclusive; a span must not cross midnight.
type ClockSpan struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

func (s ClockSpan) valid() bool {
	return s.StartMinute >= 0 && s.EndMinute <= 24*60 && s.StartMinute < s.EndMinute
}

// Window is a concrete interval on a specific date.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window (start inclusive, end exclusive).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Config is a user's call window configuration.
//
// Custom is keyed by calendar date (YYYY-MM-DD). A date key that is present
// with an empty slice suppresses calls for that date.
type Config struct {
	Recurring map[time.Weekday][]ClockSpan `json:"recurring"`
	Custom    map[string][]ClockSpan       `json:"custom"`
}

// Provider loads a user's window configuration.
// Implementations must return ErrNotFound for unknown users.
type Provider interface {
	WindowConfig(ctx context.Context, userID string) (Config, error)
}

type Resolver struct {
	provider Provider
}

func NewResolver(p Provider) *Resolver { return &Resolver{provider: p} }

// Resolve returns the merged, sorted call windows for the user on the given
// date (YYYY-MM-DD) in the given location. No side effects.
func (r *Resolver) Resolve(ctx context.Context, userID, date string, loc *time.Location) ([]Window, Mode, error) {
	if r.provider == nil {
		return nil, "", errors.New("schedule: provider not configured")
	}
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, "", fmt.Errorf("schedule: invalid date %q: %w", date, err)
	}

	cfg, err := r.provider.WindowConfig(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	spans, mode := selectSpans(cfg, date, day.Weekday())
	for _, s := range spans {
		if !s.valid() {
			return nil, "", fmt.Errorf("schedule: invalid span [%d,%d) for user %s", s.StartMinute, s.EndMinute, userID)
		}
	}

	merged := MergeSpans(spans)
	out := make([]Window, 0, len(merged))
	for _, s := range merged {
		out = append(out, Window{
			Start: day.Add(time.Duration(s.StartMinute) * time.Minute),
			End:   day.Add(time.Duration(s.EndMinute) * time.Minute),
		})
	}
	return out, mode, nil
}

func selectSpans(cfg Config, date string, weekday time.Weekday) ([]ClockSpan, Mode) {
	if cfg.Custom != nil {
		if spans, ok := cfg.Custom[date]; ok {
			return spans, ModeCustom
		}
	}
	return cfg.Recurring[weekday], ModeRecurring
}

// MergeSpans sorts spans and collapses overlapping or touching ones.
// Two spans merge when one's start is <= the other's end.
func MergeSpans(spans []ClockSpan) []ClockSpan {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]ClockSpan, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartMinute != sorted[j].StartMinute {
			return sorted[i].StartMinute < sorted[j].StartMinute
		}
		return sorted[i].EndMinute < sorted[j].EndMinute
	})

	out := []ClockSpan{sorted[0]}
	for _, s := range sorted[1:] {
		last := &out[len(out)-1]
		if s.StartMinute <= last.EndMinute {
			if s.EndMinute > last.EndMinute {
				last.EndMinute = s.EndMinute
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
