package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/withaibuild/site/internal/metrics"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets event streams flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Metrics returns a middleware that records Prometheus metrics.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			metrics.ActiveConnections.Inc()
			defer metrics.ActiveConnections.Dec()

			next.ServeHTTP(rw, r)

			metrics.RecordRequest(r.Method, normalizePath(r.URL.Path), rw.statusCode, time.Since(start))
		})
	}
}

var staticPaths = map[string]bool{
	"/health":                  true,
	"/ready":                   true,
	"/metrics":                 true,
	"/api/v1/contact":          true,
	"/api/v1/careers":          true,
	"/api/v1/newsletter":       true,
	"/api/v1/feature-requests": true,
	"/api/v1/builds":           true,
	"/api/v1/builds/slug":      true,
	"/api/v1/notify/send":      true,
	"/api/v1/notify/ip":        true,
}

// normalizePath maps a request path to a route template so that dynamic
// segments do not explode label cardinality.
func normalizePath(path string) string {
	if staticPaths[path] {
		return path
	}

	if rest, ok := strings.CutPrefix(path, "/api/v1/careers/"); ok {
		if role, tail, _ := strings.Cut(rest, "/"); role != "" && tail == "apply" {
			return "/api/v1/careers/{role}/apply"
		}
	}

	if rest, ok := strings.CutPrefix(path, "/api/v1/builds/"); ok {
		id, tail, hasTail := strings.Cut(rest, "/")
		switch {
		case id == "":
		case !hasTail:
			return "/api/v1/builds/{id}"
		case tail == "events":
			return "/api/v1/builds/{id}/events"
		}
	}

	return "/other"
}
