package attempt

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository is the persistence contract for call attempts.
//
// Update must apply the mutation as one atomic read-modify-write on the
// addressed record; webhook callbacks and the dispatcher race on the same
// rows, and every status transition is guarded by a read of current state.
type Repository interface {
	Insert(ctx context.Context, a CallAttempt) error
	GetByID(ctx context.Context, id string) (CallAttempt, error)
	GetByKey(ctx context.Context, userID, date string) (CallAttempt, error)
	Update(ctx context.Context, id string, mutate func(*CallAttempt) error) (CallAttempt, error)
	Delete(ctx context.Context, userID, date string) error
	ListByUser(ctx context.Context, userID string) ([]CallAttempt, error)
	// ListInRange returns attempts created in [from, to). An empty userID
	// means no user filter.
	ListInRange(ctx context.Context, userID string, from, to time.Time) ([]CallAttempt, error)
}

// MemoryRepo is an in-memory repository for tests and early development.
type MemoryRepo struct {
	mu   sync.Mutex
	byID map[string]CallAttempt
	keys map[string]string // Key(user,date) -> id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]CallAttempt{}, keys: map[string]string{}}
}

func (r *MemoryRepo) Insert(ctx context.Context, a CallAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := Key(a.UserID, a.Date)
	if _, ok := r.keys[k]; ok {
		return ErrAlreadyExists
	}
	r.keys[k] = a.ID
	r.byID[a.ID] = a
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (CallAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return CallAttempt{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) GetByKey(ctx context.Context, userID, date string) (CallAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.keys[Key(userID, date)]
	if !ok {
		return CallAttempt{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepo) Update(ctx context.Context, id string, mutate func(*CallAttempt) error) (CallAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return CallAttempt{}, ErrNotFound
	}
	if err := mutate(&a); err != nil {
		return CallAttempt{}, err
	}
	r.byID[id] = a
	return a, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, userID, date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := Key(userID, date)
	id, ok := r.keys[k]
	if !ok {
		return ErrNotFound
	}
	delete(r.keys, k)
	delete(r.byID, id)
	return nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]CallAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallAttempt, 0)
	for _, a := range r.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListInRange(ctx context.Context, userID string, from, to time.Time) ([]CallAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallAttempt, 0)
	for _, a := range r.byID {
		if userID != "" && a.UserID != userID {
			continue
		}
		if a.CreatedAt.Before(from) || !a.CreatedAt.Before(to) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
