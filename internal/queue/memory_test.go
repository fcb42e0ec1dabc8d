package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryQueue_FIFOOrder(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Push(ctx, id); err != nil {
			t.Fatalf("push %s: %v", id, err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		got, ok, err := q.Pop(ctx)
		if err != nil || !ok {
			t.Fatalf("pop: ok=%v err=%v", ok, err)
		}
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}

	if _, ok, _ := q.Pop(ctx); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestMemoryQueue_RejectsDuplicateMember(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	if err := q.Push(ctx, "a"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.Push(ctx, "a"); err != ErrAlreadyQueued {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}
	if n, _ := q.Len(ctx); n != 1 {
		t.Fatalf("expected len 1, got %d", n)
	}
}

func TestMemoryQueue_RemoveIsIdempotent(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	_ = q.Push(ctx, "a")
	_ = q.Push(ctx, "b")

	removed, err := q.Remove(ctx, "a")
	if err != nil || !removed {
		t.Fatalf("expected removal, got removed=%v err=%v", removed, err)
	}
	removed, err = q.Remove(ctx, "a")
	if err != nil || removed {
		t.Fatalf("expected idempotent no-op, got removed=%v err=%v", removed, err)
	}

	members, _ := q.Members(ctx)
	if len(members) != 1 || members[0] != "b" {
		t.Fatalf("unexpected members: %v", members)
	}
}

func TestMemoryQueue_ConcurrentPopsNeverDoubleDispatch(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_ = q.Push(ctx, fmt.Sprintf("attempt-%03d", i))
	}

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				id, ok, err := q.Pop(ctx)
				if err != nil {
					t.Errorf("pop: %v", err)
					return
				}
				if !ok {
					return
				}
				mu.Lock()
				seen[id]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for id, n := range seen {
		if n != 1 {
			t.Fatalf("id %s dispatched %d times", id, n)
		}
	}
	if len(seen) != 100 {
		t.Fatalf("expected 100 distinct ids, got %d", len(seen))
	}
}
