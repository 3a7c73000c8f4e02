package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// SessionIDKey is the context key for the dashboard session ID.
const SessionIDKey contextKey = "session_id"

// SessionIDHeader carries the dashboard session between requests.
const SessionIDHeader = "X-Session-ID"

// sessionIDPattern accepts UUIDs and similar opaque tokens.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// Session resolves the caller's session from X-Session-ID.
// A missing or malformed header starts a new session; the ID in use is
// always echoed back in the response header.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(SessionIDHeader)
		if !sessionIDPattern.MatchString(sessionID) {
			sessionID = uuid.New().String()
		}

		w.Header().Set(SessionIDHeader, sessionID)
		ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionID retrieves the session ID from context.
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}
