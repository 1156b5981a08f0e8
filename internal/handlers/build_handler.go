package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/withaibuild/site/internal/simulator"
	"github.com/withaibuild/site/pkg/logger"
)

// SlugResponse is the subdomain preview for a company name.
type SlugResponse struct {
	Subdomain string `json:"subdomain"`
	MaxLength int    `json:"max_length"`
}

// BuildResponse describes one simulated build.
type BuildResponse struct {
	ID        string          `json:"id"`
	CreatedAt string          `json:"created_at"`
	ElapsedMs int64           `json:"elapsed_ms"`
	State     simulator.State `json:"state"`
}

// BuildHandler serves the build simulator.
type BuildHandler struct {
	builds *simulator.Manager
	log    *logger.Logger
	// heartbeat keeps idle event streams open through proxies.
	heartbeat time.Duration
}

// NewBuildHandler creates a new BuildHandler.
func NewBuildHandler(builds *simulator.Manager, log *logger.Logger) *BuildHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &BuildHandler{builds: builds, log: log, heartbeat: 15 * time.Second}
}

// Slug handles GET /api/v1/builds/slug?name=.
func (h *BuildHandler) Slug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SlugResponse{
		Subdomain: simulator.Slugify(r.URL.Query().Get("name")),
		MaxLength: simulator.MaxSubdomainLength,
	})
}

// Create handles POST /api/v1/builds.
func (h *BuildHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form simulator.Form
	if !decodeJSON(w, r, &form) {
		return
	}

	run, err := h.builds.Create(form)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/builds/"+run.ID.String())
	writeJSON(w, http.StatusCreated, buildResponse(run))
}

// Get handles GET /api/v1/builds/{id}.
func (h *BuildHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, buildResponse(run))
}

// Cancel handles DELETE /api/v1/builds/{id}. Cancelling a finished build
// leaves it as is.
func (h *BuildHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if run.Cancel() {
		h.log.Info("build cancelled", "build_id", run.ID.String())
	}
	writeJSON(w, http.StatusOK, buildResponse(run))
}

// Events handles GET /api/v1/builds/{id}/events as a server-sent event
// stream of state snapshots. The stream ends with an "end" event once the
// build is done or cancelled.
func (h *BuildHandler) Events(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "streaming unsupported", Code: "INTERNAL_ERROR"})
		return
	}

	// The stream outlives the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	states, unsubscribe := run.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	var last simulator.State
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case st, open := <-states:
			if !open {
				_ = writeEvent(w, "end", last)
				flusher.Flush()
				return
			}
			last = st
			if err := writeEvent(w, "state", st); err != nil {
				h.log.Debug("event stream write failed", "build_id", run.ID.String(), "error", err.Error())
				return
			}
			flusher.Flush()
		}
	}
}

func (h *BuildHandler) lookup(w http.ResponseWriter, r *http.Request) (*simulator.Run, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid build id", Code: "INVALID_ID"})
		return nil, false
	}
	run, err := h.builds.Get(id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return run, true
}

func buildResponse(run *simulator.Run) BuildResponse {
	return BuildResponse{
		ID:        run.ID.String(),
		CreatedAt: run.CreatedAt.UTC().Format(time.RFC3339),
		ElapsedMs: run.Elapsed().Milliseconds(),
		State:     run.Snapshot(),
	}
}

func writeEvent(w http.ResponseWriter, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
