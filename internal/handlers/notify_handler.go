package handlers

import (
	"net/http"
	"strings"

	"github.com/withaibuild/site/internal/middleware"
)

// Relay sends a notification in the background.
type Relay interface {
	Send(text string) bool
	Enabled() bool
}

// NotifyRequest is the body of POST /api/v1/notify/send.
type NotifyRequest struct {
	Text string `json:"text"`
}

// NotifyResponse acknowledges a queued notification.
type NotifyResponse struct {
	Status string `json:"status"`
}

// IPResponse echoes the caller address.
type IPResponse struct {
	IP string `json:"ip"`
}

// NotifyHandler exposes the notification relay.
type NotifyHandler struct {
	relay Relay
}

// NewNotifyHandler creates a new NotifyHandler.
func NewNotifyHandler(relay Relay) *NotifyHandler {
	return &NotifyHandler{relay: relay}
}

// Send handles POST /api/v1/notify/send. Delivery is asynchronous.
func (h *NotifyHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "text required", Code: "TEXT_REQUIRED"})
		return
	}
	if h.relay == nil || !h.relay.Enabled() || !h.relay.Send(req.Text) {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "notifications unavailable", Code: "RELAY_UNAVAILABLE"})
		return
	}
	writeJSON(w, http.StatusAccepted, NotifyResponse{Status: "queued"})
}

// IP handles GET /api/v1/notify/ip.
func (h *NotifyHandler) IP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, IPResponse{IP: middleware.ForwardedIP(r)})
}
