package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// localIdleTTL is how long an unused in-process bucket is kept.
const localIdleTTL = 10 * time.Minute

// LocalLimiter keeps token buckets in process memory. Limits are not
// shared between replicas.
type LocalLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
	now       func() time.Time
}

type localBucket struct {
	limit    Limit
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*localBucket),
		now:     time.Now,
	}
}

// Allow takes one token from the bucket at key. A bucket is reset when
// its limit changes.
func (l *LocalLimiter) Allow(_ context.Context, key string, limit Limit) (*RateLimitResult, error) {
	now := l.now()

	l.mu.Lock()
	l.sweep(now)
	b, ok := l.buckets[key]
	if !ok || b.limit != limit {
		b = &localBucket{limit: limit, limiter: rate.NewLimiter(limit.Rate, limit.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	var wait time.Duration
	if !allowed && limit.Rate > 0 {
		wait = time.Duration((1 - tokens) / float64(limit.Rate) * float64(time.Second))
	}
	return newResult(now, limit, allowed, tokens, wait), nil
}

// sweep drops idle buckets at most once a minute. Callers hold l.mu.
func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > localIdleTTL {
			delete(l.buckets, key)
		}
	}
}
