// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/withaibuild/site/internal/config"
	"github.com/withaibuild/site/internal/handlers"
	"github.com/withaibuild/site/internal/metrics"
	"github.com/withaibuild/site/internal/middleware"
	"github.com/withaibuild/site/internal/ratelimit"
	"github.com/withaibuild/site/pkg/logger"
)

// Server represents the HTTP server.
type Server struct {
	cfg           *config.Config
	log           *logger.Logger
	httpServer    *http.Server
	healthHandler *handlers.HealthHandler
	formHandler   *handlers.FormHandler
	buildHandler  *handlers.BuildHandler
	notifyHandler *handlers.NotifyHandler
	guard         ratelimit.Guard
	listener      net.Listener
	running       bool
	mu            sync.RWMutex
}

// New creates a new Server instance.
func New(cfg *config.Config, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		cfg:           cfg,
		log:           log,
		healthHandler: handlers.NewHealthHandler(),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := s.buildMiddlewareChain(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// buildMiddlewareChain creates the middleware chain for the server.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	chain := middleware.New(
		middleware.Metrics(),
		middleware.RequestID(),
		middleware.ClientIP(s.cfg.Rate.TrustProxy, nil),
		middleware.AccessLog(s.log),
		middleware.CORS(middleware.CORSConfig{AllowedOrigin: s.cfg.Server.AllowedOrigin}),
	)

	if s.cfg.Rate.Enabled {
		s.guard = ratelimit.NewIPGuard(ratelimit.GuardConfig{
			RPS:     s.cfg.Rate.RPS,
			Burst:   s.cfg.Rate.Burst,
			IdleTTL: s.cfg.Rate.IdleTTL,
		})

		chain = chain.Append(middleware.Unless(isProbe, middleware.RateLimit(s.guard, middleware.RateLimitConfig{
			TrustProxy: s.cfg.Rate.TrustProxy,
		}, s.log)))

		s.log.Info("rate limiting enabled",
			"rps", s.cfg.Rate.RPS,
			"burst", s.cfg.Rate.Burst,
		)
	}

	return chain.Then(handler)
}

func isProbe(r *http.Request) bool {
	switch r.URL.Path {
	case "/health", "/ready", "/metrics":
		return true
	}
	return false
}

// registerRoutes sets up the HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.healthHandler.Health)
	mux.HandleFunc("GET /ready", s.healthHandler.Ready)
	mux.Handle("GET /metrics", metrics.Handler())

	// Forms
	mux.HandleFunc("POST /api/v1/contact", s.withForms(func(h *handlers.FormHandler) http.HandlerFunc { return h.Contact }))
	mux.HandleFunc("GET /api/v1/careers", s.withForms(func(h *handlers.FormHandler) http.HandlerFunc { return h.Roles }))
	mux.HandleFunc("POST /api/v1/careers/{role}/apply", s.withForms(func(h *handlers.FormHandler) http.HandlerFunc { return h.Apply }))
	mux.HandleFunc("POST /api/v1/newsletter", s.withForms(func(h *handlers.FormHandler) http.HandlerFunc { return h.Newsletter }))
	mux.HandleFunc("POST /api/v1/feature-requests", s.withForms(func(h *handlers.FormHandler) http.HandlerFunc { return h.FeatureRequest }))

	// Build simulator
	mux.HandleFunc("GET /api/v1/builds/slug", s.withBuilds(func(h *handlers.BuildHandler) http.HandlerFunc { return h.Slug }))
	mux.HandleFunc("POST /api/v1/builds", s.withBuilds(func(h *handlers.BuildHandler) http.HandlerFunc { return h.Create }))
	mux.HandleFunc("GET /api/v1/builds/{id}", s.withBuilds(func(h *handlers.BuildHandler) http.HandlerFunc { return h.Get }))
	mux.HandleFunc("DELETE /api/v1/builds/{id}", s.withBuilds(func(h *handlers.BuildHandler) http.HandlerFunc { return h.Cancel }))
	mux.HandleFunc("GET /api/v1/builds/{id}/events", s.withBuilds(func(h *handlers.BuildHandler) http.HandlerFunc { return h.Events }))

	// Notification relay
	mux.HandleFunc("POST /api/v1/notify/send", s.withNotify(func(h *handlers.NotifyHandler) http.HandlerFunc { return h.Send }))
	mux.HandleFunc("GET /api/v1/notify/ip", s.withNotify(func(h *handlers.NotifyHandler) http.HandlerFunc { return h.IP }))
}

// withForms routes to the form handler once it is configured.
func (s *Server) withForms(pick func(*handlers.FormHandler) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := s.FormHandler()
		if h == nil {
			http.Error(w, "form service not configured", http.StatusServiceUnavailable)
			return
		}
		pick(h)(w, r)
	}
}

// withBuilds routes to the build handler once it is configured.
func (s *Server) withBuilds(pick func(*handlers.BuildHandler) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := s.BuildHandler()
		if h == nil {
			http.Error(w, "build simulator not configured", http.StatusServiceUnavailable)
			return
		}
		pick(h)(w, r)
	}
}

// withNotify routes to the notify handler once it is configured.
func (s *Server) withNotify(pick func(*handlers.NotifyHandler) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := s.NotifyHandler()
		if h == nil {
			http.Error(w, "notification relay not configured", http.StatusServiceUnavailable)
			return
		}
		pick(h)(w, r)
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := s.cfg.Server.Address()

	// Create listener first to get the actual address (important when port is 0)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.log.Info("server starting", "address", listener.Addr().String())

	err = s.httpServer.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")

	// Mark as not ready during shutdown
	s.healthHandler.SetReady(false)

	err := s.httpServer.Shutdown(ctx)

	if s.guard != nil {
		if closeErr := s.guard.Close(); closeErr != nil {
			s.log.Error("failed to close rate limiter", "error", closeErr.Error())
		}
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil {
		s.log.Error("shutdown error", "error", err.Error())
		return err
	}

	s.log.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Handler returns the root handler including the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HealthHandler returns the health handler.
func (s *Server) HealthHandler() *handlers.HealthHandler {
	return s.healthHandler
}

// SetFormHandler sets the form handler for the server.
func (s *Server) SetFormHandler(h *handlers.FormHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formHandler = h
}

// FormHandler returns the form handler.
func (s *Server) FormHandler() *handlers.FormHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.formHandler
}

// SetBuildHandler sets the build handler for the server.
func (s *Server) SetBuildHandler(h *handlers.BuildHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildHandler = h
}

// BuildHandler returns the build handler.
func (s *Server) BuildHandler() *handlers.BuildHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buildHandler
}

// SetNotifyHandler sets the notify handler for the server.
func (s *Server) SetNotifyHandler(h *handlers.NotifyHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyHandler = h
}

// NotifyHandler returns the notify handler.
func (s *Server) NotifyHandler() *handlers.NotifyHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifyHandler
}
