// Package middleware contains the HTTP middleware of the site API.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/withaibuild/site/pkg/logger"
)

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

type contextKey string

const (
	// RequestIDKey is the context key for request ID.
	RequestIDKey contextKey = "request_id"
	// ClientIPKey is the context key for client IP.
	ClientIPKey contextKey = "client_ip"
)

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetClientIP retrieves the client IP stored by the ClientIP middleware.
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}

// Chain is an ordered list of middleware. The first one is the outermost.
type Chain struct {
	middlewares []Middleware
}

// New creates a chain. Nil entries are ignored.
func New(middlewares ...Middleware) *Chain {
	return (&Chain{}).Append(middlewares...)
}

// Append returns a new chain with middlewares added innermost. The receiver
// is left unchanged.
func (c *Chain) Append(middlewares ...Middleware) *Chain {
	out := make([]Middleware, 0, len(c.middlewares)+len(middlewares))
	out = append(out, c.middlewares...)
	for _, mw := range middlewares {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return &Chain{middlewares: out}
}

// Then wraps h. A nil h answers 404.
func (c *Chain) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.NotFoundHandler()
	}
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		h = c.middlewares[i](h)
	}
	return h
}

// Unless applies mw only to requests for which skip returns false, e.g. to
// keep health probes out of the rate limiter.
func Unless(skip func(*http.Request) bool, mw Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}

// AccessLog logs one line per request with its ID, client, status and
// latency. Server errors log at warn, everything else at debug.
func AccessLog(log *logger.Logger) Middleware {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			kv := []interface{}{
				"request_id", GetRequestID(r.Context()),
				"client_ip", GetClientIP(r.Context()),
				"method", r.Method,
				"path", normalizePath(r.URL.Path),
				"status", rw.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if rw.statusCode >= http.StatusInternalServerError {
				log.Warn("request failed", kv...)
				return
			}
			log.Debug("request", kv...)
		})
	}
}
