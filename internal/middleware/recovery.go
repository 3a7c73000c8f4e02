package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
)

// Recoverer is a middleware that recovers from panics.
// It logs the panic, reports it to Sentry when a client is configured and
// returns a 500 Internal Server Error.
func Recoverer(logger *slog.Logger, isDevelopment bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				requestID := GetRequestID(r.Context())

				logger.Error("panic recovered",
					slog.String("request_id", requestID),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)

				if isDevelopment {
					debug.PrintStack()
				}

				reportPanic(r, requestID, rvr)

				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// reportPanic sends the panic to Sentry. Without an initialized client the
// hub has no client and this is a no-op.
func reportPanic(r *http.Request, requestID string, rvr any) {
	hub := sentry.GetHubFromContext(r.Context())
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	if hub.Client() == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(r)
		scope.SetTag("request_id", requestID)
		if sessionID := GetSessionID(r.Context()); sessionID != "" {
			scope.SetTag("session_id", sessionID)
		}
		if err, ok := rvr.(error); ok {
			hub.CaptureException(err)
		} else {
			hub.CaptureException(fmt.Errorf("panic: %v", rvr))
		}
	})
	hub.Flush(2 * time.Second)
}

// writeError writes the JSON error body shared by all middleware.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":%q,"code":%q}`, message, code)
}
