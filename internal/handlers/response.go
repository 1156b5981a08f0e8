// Package handlers contains the HTTP handlers of the public API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/withaibuild/site/internal/models"
	"github.com/withaibuild/site/internal/services"
	"github.com/withaibuild/site/internal/simulator"
)

// maxBodyBytes caps request bodies; the largest form is a cover letter.
const maxBodyBytes = 64 << 10

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error      string            `json:"error"`
	Code       string            `json:"code,omitempty"`
	Field      string            `json:"field,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	RetryAfter int               `json:"retry_after,omitempty"`
}

var errInvalidBody = ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps err and writes it, adding Retry-After for 429s.
func writeError(w http.ResponseWriter, err error) {
	status, resp := mapErrorToResponse(err)
	if resp.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errInvalidBody)
		return false
	}
	return true
}

// mapErrorToResponse maps service errors to HTTP status codes and error responses.
func mapErrorToResponse(err error) (int, ErrorResponse) {
	var (
		validation *services.ValidationError
		limited    *services.RateLimitError
		fields     simulator.FieldErrors
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, ErrorResponse{
			Error: validation.Message,
			Code:  "VALIDATION_FAILED",
			Field: validation.Field,
		}
	case errors.As(err, &limited):
		return http.StatusTooManyRequests, ErrorResponse{
			Error:      limited.Error(),
			Code:       "RATE_LIMIT_EXCEEDED",
			RetryAfter: limited.RetryAfter,
		}
	case errors.As(err, &fields):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "invalid build form",
			Code:   "INVALID_FORM",
			Fields: fields,
		}
	case errors.Is(err, models.ErrUnknownRole):
		return http.StatusNotFound, ErrorResponse{
			Error: "role not found",
			Code:  "ROLE_NOT_FOUND",
		}
	case errors.Is(err, simulator.ErrRunNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_FOUND",
		}
	case errors.Is(err, services.ErrSubmissionFailed):
		return http.StatusBadGateway, ErrorResponse{
			Error: services.MsgSubmissionFailed,
			Code:  "SUBMISSION_FAILED",
		}
	case errors.Is(err, services.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error: services.MsgSubmissionFailed,
			Code:  "STORE_UNAVAILABLE",
		}
	case errors.Is(err, simulator.ErrTooManyRuns), errors.Is(err, simulator.ErrManagerClosed):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error: "service temporarily unavailable",
			Code:  "BUILDS_UNAVAILABLE",
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		}
	}
}
