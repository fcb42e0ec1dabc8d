package calls

import (
	"errors"
	"sync"
	"time"
)

var ErrCallActive = errors.New("calls: call already active")

// Registry tracks live PhoneCallRecords by provider call id.
//
// Invariant: a record is registered before the first prompt plays and
// released on the call's terminal transition. Records that outlive their
// call (process restart mid-call) are swept by age, which keeps a crashed
// call from pinning its scratch state forever.
type Registry struct {
	mu      sync.Mutex
	records map[string]*PhoneCallRecord
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*PhoneCallRecord)}
}

func (r *Registry) Register(rec *PhoneCallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ProviderCallID]; ok {
		return ErrCallActive
	}
	r.records[rec.ProviderCallID] = rec
	return nil
}

// Release is idempotent; releasing an unknown call id is a no-op.
func (r *Registry) Release(providerCallID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, providerCallID)
}

func (r *Registry) Get(providerCallID string) (*PhoneCallRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[providerCallID]
	return rec, ok
}

// Active returns a snapshot of live records, oldest first.
func (r *Registry) Active() []*PhoneCallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PhoneCallRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].StartedAt.Before(out[j-1].StartedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Sweep releases records older than maxAge and returns how many it dropped.
func (r *Registry) Sweep(now time.Time, maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, rec := range r.records {
		if now.Sub(rec.StartedAt) > maxAge {
			delete(r.records, id)
			n++
		}
	}
	return n
}
