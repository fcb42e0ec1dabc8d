package queue

import (
	"context"
	"errors"
)

// Queue is the durable FIFO of call attempt ids awaiting dispatch.
//
// Invariants every implementation must preserve:
// - an id appears at most once in the queue
// - Push/Pop/Remove are atomic against concurrent callers
//   (the queue has three concurrent writers: scheduling pushes,
//   dispatch pops, and terminal transitions remove)
//
// Status checks (only pending attempts may be queued) belong to the
// attempt service; the queue is purely mechanical.
type Queue interface {
	// Push appends id at the tail. Fails with ErrAlreadyQueued if present.
	Push(ctx context.Context, id string) error

	// Pop removes and returns the head. ok is false when the queue is empty.
	Pop(ctx context.Context) (id string, ok bool, err error)

	// Remove deletes id wherever it sits. Idempotent: removing an absent
	// id is not an error; removed reports whether it was present.
	Remove(ctx context.Context, id string) (removed bool, err error)

	// Contains reports membership.
	Contains(ctx context.Context, id string) (bool, error)

	// Members returns the current ids in dispatch order.
	Members(ctx context.Context) ([]string, error)

	// Len returns the current queue length.
	Len(ctx context.Context) (int, error)
}

var ErrAlreadyQueued = errors.New("queue: already queued")
