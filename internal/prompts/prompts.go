package prompts

import (
	"context"
	"errors"
	"sort"
	"sync"

	"reflectcall-platform/internal/session"
)

var ErrNotFound = errors.New("prompts: not found")

// Provider supplies a user's currently active prompt template.
//
// Implementations must return a stable order. Callers snapshot the result
// at session start; template edits never reach in-flight sessions.
type Provider interface {
	ActivePrompts(ctx context.Context, userID string) ([]session.Prompt, error)
}

// SortForSession orders prompts for an interview: regular prompts keep
// their relative order, rating prompts trail them.
func SortForSession(in []session.Prompt) []session.Prompt {
	out := make([]session.Prompt, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].IsRating && out[j].IsRating
	})
	return out
}

// MemoryProvider is an in-memory prompt template store for tests and early
// development.
type MemoryProvider struct {
	mu       sync.Mutex
	byUser   map[string][]session.Prompt
	fallback []session.Prompt
}

func NewMemoryProvider(fallback []session.Prompt) *MemoryProvider {
	return &MemoryProvider{byUser: map[string][]session.Prompt{}, fallback: fallback}
}

// SetPrompts replaces the active template for a user.
func (p *MemoryProvider) SetPrompts(userID string, prompts []session.Prompt) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]session.Prompt, len(prompts))
	copy(cp, prompts)
	p.byUser[userID] = cp
}

func (p *MemoryProvider) ActivePrompts(ctx context.Context, userID string) ([]session.Prompt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prompts, ok := p.byUser[userID]; ok {
		out := make([]session.Prompt, len(prompts))
		copy(out, prompts)
		return out, nil
	}
	if len(p.fallback) > 0 {
		out := make([]session.Prompt, len(p.fallback))
		copy(out, p.fallback)
		return out, nil
	}
	return nil, ErrNotFound
}
