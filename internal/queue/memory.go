package queue

import (
	"context"
	"sync"
)

// MemoryQueue is a mutex-guarded in-process queue for tests and early
// development. Membership and order are updated under one lock, which
// gives the same compare-and-update semantics the Redis queue provides.
type MemoryQueue struct {
	mu      sync.Mutex
	order   []string
	members map[string]struct{}
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{members: map[string]struct{}{}}
}

func (q *MemoryQueue) Push(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.members[id]; ok {
		return ErrAlreadyQueued
	}
	q.members[id] = struct{}{}
	q.order = append(q.order, id)
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return "", false, nil
	}
	id := q.order[0]
	q.order = q.order[1:]
	delete(q.members, id)
	return id, true, nil
}

func (q *MemoryQueue) Remove(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.members[id]; !ok {
		return false, nil
	}
	delete(q.members, id)
	for i, v := range q.order {
		if v == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (q *MemoryQueue) Contains(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.members[id]
	return ok, nil
}

func (q *MemoryQueue) Members(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.order))
	copy(out, q.order)
	return out, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order), nil
}
