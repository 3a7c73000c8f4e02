package handler

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// readyTimeout bounds every dependency check of one /readyz call.
const readyTimeout = 3 * time.Second

// HealthChecker is a dependency that can be pinged.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	deps map[string]HealthChecker
}

// NewHealthHandler builds the probes for the API server. A nil cache means
// history lives in memory and Redis is reported as not configured.
func NewHealthHandler(cache, sources HealthChecker) *HealthHandler {
	return &HealthHandler{deps: map[string]HealthChecker{
		"redis":   cache,
		"sources": sources,
	}}
}

// HealthResponse is the body of both probes.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz handles GET /healthz. It never touches dependencies.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz handles GET /readyz, pinging every configured dependency
// concurrently. Any failure makes the instance unready.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]string, len(h.deps))
		ready  = true
	)
	for name, dep := range h.deps {
		if dep == nil {
			mu.Lock()
			checks[name] = "not configured"
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := "ok"
			err := dep.Ping(ctx)
			if err != nil {
				result = "error: " + err.Error()
			}

			mu.Lock()
			checks[name] = result
			ready = ready && err == nil
			mu.Unlock()
		}()
	}
	wg.Wait()

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}
