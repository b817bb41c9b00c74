package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateKeyPrefix        = "rate:"
	idempotencyKeyPrefix = "idem:"
	lockoutKeyPrefix     = "login_fail:"
	idempotencyKeyTTL    = 24 * time.Hour
)

// fixedWindowScript counts a hit and starts the window on the first one.
// Returns 1 while the count stays within ARGV[1].
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = redis.call('INCR', key)
if current == 1 then
	redis.call('PEXPIRE', key, window)
end

if current > limit then
	return 0
end

return 1
`)

// countFailureScript increments a counter, arming its TTL on first use.
var countFailureScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return current
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	result, err := fixedWindowScript.Run(ctx, r.client, []string{rateKeyPrefix + key}, limit, window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisAdapter) RecordFailure(ctx context.Context, id string, window time.Duration) (int, error) {
	return countFailureScript.Run(ctx, r.client, []string{lockoutKeyPrefix + id}, window.Milliseconds()).Int()
}

func (r *RedisAdapter) Failures(ctx context.Context, id string) (int, error) {
	n, err := r.client.Get(ctx, lockoutKeyPrefix+id).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (r *RedisAdapter) ResetFailures(ctx context.Context, id string) error {
	return r.client.Del(ctx, lockoutKeyPrefix+id).Err()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
