package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/webpulse/webpulse/internal/cache"
	"github.com/webpulse/webpulse/internal/metrics"
)

// Limiter takes tokens from named buckets.
// Both *cache.Cache (Redis) and *cache.LocalLimiter implement it.
type Limiter interface {
	Allow(ctx context.Context, key string, limit cache.Limit) (*cache.RateLimitResult, error)
}

type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter Limiter
	Metrics metrics.Recorder
	Enabled bool

	// Every API request, per client IP.
	IPRPS   int
	IPBurst int

	// Analysis submissions, per dashboard session.
	SubmissionsPerMinute int
	SubmissionBurst      int
}

// bucketRule says which bucket a request draws from. An empty key exempts
// the request.
type bucketRule struct {
	scope   string
	limit   cache.Limit
	ceiling int
	key     func(r *http.Request) string
}

// RateLimitIP limits every request per client IP.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return cfg.limited(cfg.IPRPS, bucketRule{
		scope:   "ip",
		limit:   cache.PerSecond(cfg.IPRPS, cfg.IPBurst),
		ceiling: cfg.IPRPS,
		key:     func(r *http.Request) string { return cache.IPBucket(getClientIP(r)) },
	})
}

// RateLimitSession limits analysis submissions per session. It must run
// inside Session; requests without a session are not limited.
func RateLimitSession(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return cfg.limited(cfg.SubmissionsPerMinute, bucketRule{
		scope:   "session",
		limit:   cache.PerMinute(cfg.SubmissionsPerMinute, cfg.SubmissionBurst),
		ceiling: cfg.SubmissionsPerMinute,
		key: func(r *http.Request) string {
			if id := GetSessionID(r.Context()); id != "" {
				return cache.SessionBucket(id)
			}
			return ""
		},
	})
}

// limited builds the middleware for one rule. Limiter errors let the
// request through.
func (cfg RateLimitConfig) limited(rate int, rule bucketRule) func(http.Handler) http.Handler {
	if !cfg.Enabled || rate <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rule.key(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := cfg.Limiter.Allow(r.Context(), key, rule.limit)
			if err != nil {
				cfg.Logger.Error("rate limit check failed",
					slog.String("scope", rule.scope),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rule.ceiling))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if res.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(1, int(math.Ceil(res.RetryAfter.Seconds())))
			cfg.Logger.Warn("rate limited",
				slog.String("scope", rule.scope),
				slog.String("route", r.Method+" "+r.URL.Path),
				slog.Int("retry_after_s", retryAfter),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			if cfg.Metrics != nil {
				cfg.Metrics.IncRateLimited()
			}

			h.Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
				fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", retryAfter))
		})
	}
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
