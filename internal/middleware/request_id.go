// Package middleware provides the HTTP middleware shared by the API and
// sources servers.
package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

// RequestIDKey is the context key for the request ID.
const RequestIDKey contextKey = "request_id"

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"
	// TraceIDHeader echoes the OpenTelemetry trace ID of the request.
	TraceIDHeader = "X-Trace-ID"
)

// requestIDPattern limits what a client may supply as its own request ID.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID tags each request with an ID, reusing a well-formed
// X-Request-ID from the client and otherwise minting a ULID. When the
// request is traced the trace ID is echoed in X-Trace-ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !requestIDPattern.MatchString(id) {
			id = ulid.Make().String()
		}

		w.Header().Set(RequestIDHeader, id)
		if traceID := GetTraceID(r.Context()); traceID != "" {
			w.Header().Set(TraceIDHeader, traceID)
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIDKey, id)))
	})
}

// GetRequestID returns the request ID, or "" outside RequestID.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// GetTraceID returns the trace ID of the active span, or "".
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
