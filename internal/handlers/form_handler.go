package handlers

import (
	"context"
	"net/http"

	"github.com/withaibuild/site/internal/middleware"
	"github.com/withaibuild/site/internal/models"
	"github.com/withaibuild/site/internal/services"
)

// FormSubmitter is the subset of services.FormService used by FormHandler.
type FormSubmitter interface {
	SubmitContact(ctx context.Context, clientIP string, in models.ContactInput) (services.Outcome, error)
	SubmitApplication(ctx context.Context, clientIP, roleID string, in models.ApplicationInput) (services.Outcome, error)
	SubscribeNewsletter(ctx context.Context, clientIP string, in models.NewsletterInput) (services.Outcome, error)
	SubmitFeatureRequest(ctx context.Context, clientIP string, in models.FeatureRequestInput) (services.Outcome, error)
}

// SubmissionResponse acknowledges a stored submission.
type SubmissionResponse struct {
	Status string `json:"status"`
}

// RolesResponse lists open positions.
type RolesResponse struct {
	Roles []models.Role `json:"roles"`
}

// FormHandler handles the public form endpoints.
type FormHandler struct {
	forms FormSubmitter
}

// NewFormHandler creates a new FormHandler.
func NewFormHandler(forms FormSubmitter) *FormHandler {
	return &FormHandler{forms: forms}
}

// Contact handles POST /api/v1/contact.
func (h *FormHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var in models.ContactInput
	if !decodeJSON(w, r, &in) {
		return
	}
	outcome, err := h.forms.SubmitContact(r.Context(), middleware.GetClientIP(r.Context()), in)
	respondSubmission(w, outcome, err)
}

// Apply handles POST /api/v1/careers/{role}/apply.
func (h *FormHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var in models.ApplicationInput
	if !decodeJSON(w, r, &in) {
		return
	}
	outcome, err := h.forms.SubmitApplication(r.Context(), middleware.GetClientIP(r.Context()), r.PathValue("role"), in)
	respondSubmission(w, outcome, err)
}

// Newsletter handles POST /api/v1/newsletter.
func (h *FormHandler) Newsletter(w http.ResponseWriter, r *http.Request) {
	var in models.NewsletterInput
	if !decodeJSON(w, r, &in) {
		return
	}
	outcome, err := h.forms.SubscribeNewsletter(r.Context(), middleware.GetClientIP(r.Context()), in)
	respondSubmission(w, outcome, err)
}

// FeatureRequest handles POST /api/v1/feature-requests.
func (h *FormHandler) FeatureRequest(w http.ResponseWriter, r *http.Request) {
	var in models.FeatureRequestInput
	if !decodeJSON(w, r, &in) {
		return
	}
	outcome, err := h.forms.SubmitFeatureRequest(r.Context(), middleware.GetClientIP(r.Context()), in)
	respondSubmission(w, outcome, err)
}

// Roles handles GET /api/v1/careers.
func (h *FormHandler) Roles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RolesResponse{Roles: models.OpenRoles()})
}

// respondSubmission writes the outcome. Duplicate newsletter addresses get
// the same answer as new ones.
func respondSubmission(w http.ResponseWriter, outcome services.Outcome, err error) {
	if err != nil {
		writeError(w, err)
		return
	}

	switch outcome {
	case services.OutcomeDiscarded:
		w.WriteHeader(http.StatusNoContent)
	case services.OutcomeAlreadySubscribed:
		writeJSON(w, http.StatusCreated, SubmissionResponse{Status: string(services.OutcomeAccepted)})
	default:
		writeJSON(w, http.StatusCreated, SubmissionResponse{Status: string(outcome)})
	}
}
