package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limit is a token bucket refilling at Rate tokens per second up to Burst.
type Limit struct {
	Rate  rate.Limit
	Burst int
}

// PerSecond builds a Limit of n requests per second.
func PerSecond(n, burst int) Limit {
	return Limit{Rate: rate.Limit(n), Burst: max(burst, 1)}
}

// PerMinute builds a Limit of n requests per minute.
func PerMinute(n, burst int) Limit {
	return Limit{Rate: rate.Limit(float64(n) / 60), Burst: max(burst, 1)}
}

// interval is the time needed to refill one token.
func (l Limit) interval() time.Duration {
	if l.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(l.Rate))
}

// idleTTL is how long a bucket must sit unused before it is full again.
func (l Limit) idleTTL() time.Duration {
	return time.Duration(l.Burst)*l.interval() + time.Second
}

// RateLimitResult is the outcome of taking one token.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// IPBucket names the bucket of a client IP. Raw IPs are never stored.
func IPBucket(ip string) string {
	return keyPrefix + "ratelimit:ip:" + hashKey(ip)
}

// SessionBucket names the submission bucket of a dashboard session.
func SessionBucket(sessionID string) string {
	return keyPrefix + "ratelimit:session:" + hashKey(sessionID)
}

func hashKey(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:8])
}

// takeTokenScript refills and takes one token atomically. Time is in
// milliseconds; the reply is {allowed, tokens*1000, wait_ms}.
var takeTokenScript = redis.NewScript(`
local rate = tonumber(ARGV[1]) / 1000
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
if now > ts then
	tokens = math.min(burst, tokens + (now - ts) * rate)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, math.floor(tokens * 1000), wait}
`)

// Allow takes one token from the Redis bucket at key. Buckets are shared
// by every API replica.
func (c *Cache) Allow(ctx context.Context, key string, limit Limit) (*RateLimitResult, error) {
	now := time.Now()
	reply, err := takeTokenScript.Run(ctx, c.rdb, []string{key},
		float64(limit.Rate), limit.Burst, now.UnixMilli(), limit.idleTTL().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("rate limit %s: unexpected reply %v", key, reply)
	}

	return newResult(now, limit, reply[0] == 1, float64(reply[1])/1000, time.Duration(reply[2])*time.Millisecond), nil
}

func newResult(now time.Time, limit Limit, allowed bool, tokens float64, wait time.Duration) *RateLimitResult {
	res := &RateLimitResult{
		Allowed:   allowed,
		Remaining: int64(math.Max(0, math.Floor(tokens))),
		ResetAt:   now.Add(limit.interval()),
	}
	if !allowed {
		res.RetryAfter = wait
	}
	return res
}
