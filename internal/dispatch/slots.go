package dispatch

import (
	"context"
	"time"

	"reflectcall-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// SlotLimiter caps how many calls may be live at once across the fleet.
type SlotLimiter interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisSlotLimiter counts live calls in Redis so the cap holds across
// processes. The TTL bounds leakage when a process dies without releasing.
type RedisSlotLimiter struct {
	rdb   *redis.Client
	key   string
	limit int
	ttl   time.Duration
}

func NewRedisSlotLimiter(rdb *redis.Client, key string, limit int, ttl time.Duration) *RedisSlotLimiter {
	return &RedisSlotLimiter{rdb: rdb, key: key, limit: limit, ttl: ttl}
}

func (l *RedisSlotLimiter) Acquire(ctx context.Context) (bool, error) {
	return utils.AcquireLiveCallSlot(ctx, l.rdb, l.key, l.limit, l.ttl)
}

func (l *RedisSlotLimiter) Release(ctx context.Context) error {
	return utils.ReleaseLiveCallSlot(ctx, l.rdb, l.key)
}

// UnlimitedSlots is for tests and single-process setups with no cap.
type UnlimitedSlots struct{}

func (UnlimitedSlots) Acquire(ctx context.Context) (bool, error) { return true, nil }
func (UnlimitedSlots) Release(ctx context.Context) error         { return nil }
