package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// accessLog runs req through h wrapped by mw and returns the decoded log line.
func accessLog(t *testing.T, wrap func(*slog.Logger, http.Handler) http.Handler, h http.Handler, req *http.Request) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	wrap(logger, h).ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), "log output: %s", buf.String())
	return line
}

func loggerOnly(logger *slog.Logger, h http.Handler) http.Handler {
	return Logger(logger)(h)
}

func respond(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func TestLogger_Fields(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", nil)
	req.Header.Set("User-Agent", "TestBrowser/2.0")

	line := accessLog(t, loggerOnly, respond(http.StatusCreated, `{"sequence":1}`), req)

	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, "POST", line["method"])
	assert.Equal(t, "/api/v1/reports", line["path"])
	assert.EqualValues(t, 201, line["status_code"])
	assert.EqualValues(t, 14, line["bytes"])
	assert.Equal(t, "TestBrowser/2.0", line["user_agent"])
	assert.Contains(t, line, "duration_ms")
	assert.NotContains(t, line, "session_id")
}

func TestLogger_QueryAndHeadersNotLogged(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports?url=https%3A%2F%2Fprivate.example.com&token=s3cr3t", nil)
	req.Header.Set("Authorization", "Bearer s3cr3t")

	var buf bytes.Buffer
	Logger(slog.New(slog.NewJSONHandler(&buf, nil)))(respond(http.StatusOK, "")).ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, leak := range []string{"s3cr3t", "private.example.com", "Authorization"} {
		assert.NotContains(t, out, leak)
	}
	assert.Contains(t, out, `"path":"/api/v1/reports"`)
}

func TestLogger_LevelByStatus(t *testing.T) {
	t.Parallel()

	tests := map[int]string{
		http.StatusOK:                  "INFO",
		http.StatusCreated:             "INFO",
		http.StatusNotModified:         "INFO",
		http.StatusBadRequest:          "WARN",
		http.StatusNotFound:            "WARN",
		http.StatusUnprocessableEntity: "WARN",
		http.StatusTooManyRequests:     "WARN",
		http.StatusInternalServerError: "ERROR",
		http.StatusBadGateway:          "ERROR",
	}

	for status, level := range tests {
		t.Run(http.StatusText(status), func(t *testing.T) {
			t.Parallel()

			line := accessLog(t, loggerOnly, respond(status, ""), httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
			assert.Equal(t, level, line["level"])
		})
	}
}

func TestLogger_CorrelationIDs(t *testing.T) {
	t.Parallel()

	// Session sits inside the logger on the API routes.
	wrap := func(logger *slog.Logger, h http.Handler) http.Handler {
		return RequestID(Logger(logger)(Session(h)))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	req.Header.Set(SessionIDHeader, "session-abcdef")

	line := accessLog(t, wrap, respond(http.StatusOK, `{"in_flight":false}`), req)
	assert.Equal(t, "req-123", line["request_id"])
	assert.Equal(t, "session-abcdef", line["session_id"])
	assert.EqualValues(t, 19, line["bytes"])
}

func TestLogger_RoutePattern(t *testing.T) {
	t.Parallel()

	wrap := func(logger *slog.Logger, h http.Handler) http.Handler {
		r := chi.NewRouter()
		r.Use(Logger(logger))
		r.Method(http.MethodGet, "/api/v1/reports/{id}", h)
		return r
	}

	line := accessLog(t, wrap, respond(http.StatusNotFound, ""), httptest.NewRequest(http.MethodGet, "/api/v1/reports/01HX", nil))
	assert.Equal(t, "/api/v1/reports/{id}", line["route"])
	assert.Equal(t, "/api/v1/reports/01HX", line["path"])
}

func TestStatusWriter(t *testing.T) {
	t.Parallel()

	t.Run("implicit 200", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		sw := wrapResponseWriter(rec)
		_, _ = sw.Write([]byte("hello"))

		assert.Equal(t, http.StatusOK, sw.status)
		assert.Equal(t, 5, sw.bytes)
	})

	t.Run("first status wins", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		sw := wrapResponseWriter(rec)
		sw.WriteHeader(http.StatusBadGateway)
		sw.WriteHeader(http.StatusOK)

		assert.Equal(t, http.StatusBadGateway, sw.status)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("unwraps", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		assert.Same(t, rec, wrapResponseWriter(rec).Unwrap())
	})
}
