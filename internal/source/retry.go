package source

import (
	"context"
	"math/rand"
	"net/http"
	"time"
)

// Retry delays for transport failures.
// Attempt 1: 200ms, Attempt 2: 500ms, Attempt 3+: 1s
var retryDelays = []time.Duration{
	200 * time.Millisecond,
	500 * time.Millisecond,
	1 * time.Second,
}

const (
	// DefaultMaxRetries is the default number of retries after a transport failure.
	DefaultMaxRetries = 1

	// JitterFactor is the ±percentage of jitter applied to delays.
	JitterFactor = 0.2 // ±20%
)

// NextRetryDelay calculates the delay before a retry, with jitter.
// attempt is 0-indexed (after the first failed call, attempt = 0).
func NextRetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(retryDelays) {
		attempt = len(retryDelays) - 1
	}

	base := retryDelays[attempt]
	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}

// IsExhausted returns true once retries have been used up.
func IsExhausted(retries, maxRetries int) bool {
	return retries >= maxRetries
}

// retryableStatus reports whether a non-2xx status without an error body
// is worth another attempt.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
