package dispatch

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrProfileNotFound = errors.New("dispatch: profile not found")

// Profile is the slice of user data the dispatcher needs: where to call and
// which timezone the user's windows are expressed in.
type Profile struct {
	UserID   string `json:"user_id"`
	Phone    string `json:"phone"`
	Timezone string `json:"timezone"`
}

type Directory interface {
	Profile(ctx context.Context, userID string) (Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
}

type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{profiles: make(map[string]Profile)}
}

func (d *MemoryDirectory) Put(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.UserID] = p
}

func (d *MemoryDirectory) Profile(ctx context.Context, userID string) (Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[userID]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (d *MemoryDirectory) ListProfiles(ctx context.Context) ([]Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Profile, 0, len(d.profiles))
	for _, p := range d.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
