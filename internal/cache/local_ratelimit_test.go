package cache

import (
	"context"
	"testing"
	"time"
)

func newFixedLimiter() (*LocalLimiter, *time.Time) {
	l := NewLocalLimiter()
	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	return l, &fixed
}

func TestLocalLimiter_IPBurst(t *testing.T) {
	t.Parallel()

	l, clock := newFixedLimiter()
	ctx := context.Background()
	limit := PerSecond(1, 3)

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, IPBucket("10.0.0.1"), limit)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	res, _ := l.Allow(ctx, IPBucket("10.0.0.1"), limit)
	if res.Allowed {
		t.Fatal("request beyond burst should be rejected")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Second {
		t.Errorf("RetryAfter = %v, want (0, 1s]", res.RetryAfter)
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}

	if res, _ := l.Allow(ctx, IPBucket("10.0.0.2"), limit); !res.Allowed {
		t.Error("different IP should have its own bucket")
	}

	*clock = clock.Add(2 * time.Second)
	if res, _ := l.Allow(ctx, IPBucket("10.0.0.1"), limit); !res.Allowed {
		t.Error("request after refill should be allowed")
	}
}

func TestLocalLimiter_SessionLimit(t *testing.T) {
	t.Parallel()

	l, _ := newFixedLimiter()
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 10; i++ {
		if res, _ := l.Allow(ctx, SessionBucket("session-a"), PerMinute(6, 2)); res.Allowed {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed = %d, want burst of 2", allowed)
	}

	res, _ := l.Allow(ctx, SessionBucket("session-a"), PerMinute(6, 2))
	if res.RetryAfter < 9*time.Second || res.RetryAfter > 10*time.Second {
		t.Errorf("RetryAfter = %v, want about 10s at 6/min", res.RetryAfter)
	}
}

func TestLocalLimiter_LimitChangeResetsBucket(t *testing.T) {
	t.Parallel()

	l, _ := newFixedLimiter()
	ctx := context.Background()
	key := SessionBucket("session-b")

	_, _ = l.Allow(ctx, key, PerMinute(1, 1))
	if res, _ := l.Allow(ctx, key, PerMinute(1, 1)); res.Allowed {
		t.Fatal("second request should exhaust a burst of 1")
	}
	if res, _ := l.Allow(ctx, key, PerMinute(1, 5)); !res.Allowed {
		t.Error("a new limit should start from a full bucket")
	}
}

func TestLocalLimiter_SweepsIdleBuckets(t *testing.T) {
	t.Parallel()

	l, clock := newFixedLimiter()
	ctx := context.Background()

	_, _ = l.Allow(ctx, IPBucket("10.0.0.1"), PerSecond(1, 1))
	*clock = clock.Add(localIdleTTL + time.Minute)
	_, _ = l.Allow(ctx, IPBucket("10.0.0.2"), PerSecond(1, 1))

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.buckets[IPBucket("10.0.0.1")]; ok {
		t.Error("idle bucket should have been swept")
	}
	if len(l.buckets) != 1 {
		t.Errorf("buckets = %d, want 1", len(l.buckets))
	}
}
