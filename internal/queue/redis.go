package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps dispatch order in a Redis list and membership in a
// companion set, updated together inside Lua scripts so that every
// operation is one atomic compare-and-update. Concurrent pushers,
// poppers, and removers can never double-queue or double-dispatch an id.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

// NewRedisQueue builds a queue over the given key prefix. Two keys are
// used: <key>:order (list) and <key>:members (set).
func NewRedisQueue(rdb *redis.Client, key string) (*RedisQueue, error) {
	if rdb == nil {
		return nil, errors.New("queue: redis client is nil")
	}
	if key == "" {
		return nil, errors.New("queue: key is required")
	}
	return &RedisQueue{rdb: rdb, key: key}, nil
}

func (q *RedisQueue) orderKey() string   { return q.key + ":order" }
func (q *RedisQueue) membersKey() string { return q.key + ":members" }

var pushScript = redis.NewScript(`
-- KEYS[1] = order list, KEYS[2] = members set
-- ARGV[1] = id
-- Returns 1 on push, 0 when the id is already a member.
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
  return 0
end
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('RPUSH', KEYS[1], ARGV[1])
return 1
`)

var popScript = redis.NewScript(`
-- KEYS[1] = order list, KEYS[2] = members set
-- Returns the head id or false when empty.
local id = redis.call('LPOP', KEYS[1])
if id == false then
  return false
end
redis.call('SREM', KEYS[2], id)
return id
`)

var removeScript = redis.NewScript(`
-- KEYS[1] = order list, KEYS[2] = members set
-- ARGV[1] = id
-- Returns 1 when removed, 0 when the id was not queued.
if redis.call('SREM', KEYS[2], ARGV[1]) == 0 then
  return 0
end
redis.call('LREM', KEYS[1], 1, ARGV[1])
return 1
`)

func (q *RedisQueue) Push(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("queue: id is required")
	}
	res, err := pushScript.Run(ctx, q.rdb, []string{q.orderKey(), q.membersKey()}, id).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrAlreadyQueued
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (string, bool, error) {
	res, err := popScript.Run(ctx, q.rdb, []string{q.orderKey(), q.membersKey()}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	id, ok := res.(string)
	if !ok || id == "" {
		return "", false, nil
	}
	return id, true, nil
}

func (q *RedisQueue) Remove(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("queue: id is required")
	}
	res, err := removeScript.Run(ctx, q.rdb, []string{q.orderKey(), q.membersKey()}, id).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (q *RedisQueue) Contains(ctx context.Context, id string) (bool, error) {
	return q.rdb.SIsMember(ctx, q.membersKey(), id).Result()
}

func (q *RedisQueue) Members(ctx context.Context) ([]string, error) {
	return q.rdb.LRange(ctx, q.orderKey(), 0, -1).Result()
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.rdb.LLen(ctx, q.orderKey()).Result()
	return int(n), err
}
