package ratelimit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/segyhp/jaryq-library/internal/clock"
)

// tokenBucketScript refills and takes from a bucket atomically.
// KEYS: tokens, timestamp. ARGV: rate, capacity, now (seconds), requested.
var tokenBucketScript = redis.NewScript(`
local tokens_key = KEYS[1]
local timestamp_key = KEYS[2]

local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local fill_time = capacity / rate
local ttl = math.floor(fill_time * 2)
if ttl < 1 then
  ttl = 1
end

local last_tokens = tonumber(redis.call("get", tokens_key))
if last_tokens == nil then
  last_tokens = capacity
end

local last_refreshed = tonumber(redis.call("get", timestamp_key))
if last_refreshed == nil then
  last_refreshed = 0
end

local delta = math.max(0, now - last_refreshed)
local filled_tokens = math.min(capacity, last_tokens + (delta * rate))
local allowed = filled_tokens >= requested
local new_tokens = filled_tokens
local allowed_num = 0
if allowed then
  new_tokens = filled_tokens - requested
  allowed_num = 1
end

redis.call("setex", tokens_key, ttl, new_tokens)
redis.call("setex", timestamp_key, ttl, now)

return { allowed_num, math.floor(new_tokens) }
`)

// RedisLimiter keeps buckets in Redis
type RedisLimiter struct {
	rdb    *redis.Client
	policy Policy
	clock  clock.Clock
}

func NewRedisLimiter(rdb *redis.Client, policy Policy, clk clock.Clock) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		policy: policy.normalized(),
		clock:  clk,
	}
}

func (l *RedisLimiter) Policy() Policy {
	return l.policy
}

// Allow fails open: when Redis cannot be reached the request is allowed and
// the error is returned for logging.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	prefix := "request_rate_limiter.{" + key + "}"
	keys := []string{prefix + ".tokens", prefix + ".timestamp"}

	now := float64(l.clock.Now().UnixMilli()) / 1000
	args := []interface{}{
		strconv.FormatFloat(l.policy.ReplenishRate, 'f', -1, 64),
		l.policy.BurstCapacity,
		strconv.FormatFloat(now, 'f', 3, 64),
		l.policy.Requested,
	}

	res, err := tokenBucketScript.Run(ctx, l.rdb, keys, args...).Int64Slice()
	if err != nil {
		return Result{Allowed: true, Remaining: -1}, err
	}
	if len(res) != 2 {
		return Result{Allowed: true, Remaining: -1}, fmt.Errorf("unexpected script result %v", res)
	}

	return Result{Allowed: res[0] == 1, Remaining: res[1]}, nil
}
