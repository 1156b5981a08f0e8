package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthResponse represents the response for the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadyResponse represents the response for the ready endpoint.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	check    CheckFunc
	optional bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	ready        bool
	checks       map[string]namedCheck
	checkTimeout time.Duration
	mu           sync.RWMutex
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		ready:        true,
		checks:       make(map[string]namedCheck),
		checkTimeout: 2 * time.Second,
	}
}

// Health handles the /health endpoint.
// This endpoint indicates if the service is running.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles the /ready endpoint. A failing required check makes the
// service not ready; a failing optional check is reported as "degraded".
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	allReady := h.ready
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]namedCheck, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	timeout := h.checkTimeout
	h.mu.RUnlock()

	sort.Strings(names)

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	results := make(map[string]string, len(names))
	for _, name := range names {
		c := checks[name]
		switch err := c.check(ctx); {
		case err == nil:
			results[name] = "ok"
		case c.optional:
			results[name] = "degraded"
		default:
			results[name] = "fail"
			allReady = false
		}
	}

	status := "ready"
	statusCode := http.StatusOK

	if !allReady {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if len(results) > 0 {
		response.Checks = results
	}

	writeJSON(w, statusCode, response)
}

// SetReady sets the ready state.
func (h *HealthHandler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady returns the current ready state.
func (h *HealthHandler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// AddCheck adds a required dependency check.
func (h *HealthHandler) AddCheck(name string, check CheckFunc) {
	h.addCheck(name, namedCheck{check: check})
}

// AddOptionalCheck adds a check whose failure does not affect readiness,
// e.g. a store the service can fail open on.
func (h *HealthHandler) AddOptionalCheck(name string, check CheckFunc) {
	h.addCheck(name, namedCheck{check: check, optional: true})
}

func (h *HealthHandler) addCheck(name string, c namedCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = c
}
