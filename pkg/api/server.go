// Package api exposes the coordinator over HTTP: intent intake, status
// updates, resolver secret retrieval and operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fusionplus-hq/coordinator/pkg/logger"
	"github.com/fusionplus-hq/coordinator/pkg/store"
)

// Config tunes the HTTP server.
type Config struct {
	Port       string
	MetricsKey string
	// DefaultFinalityLock in seconds, applied to intents created without one.
	DefaultFinalityLock int64
	// Ready reports whether the service can serve traffic; nil means always
	// ready.
	Ready func() error
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Server is the coordinator's HTTP front.
type Server struct {
	cfg    Config
	store  *store.Store
	logger logger.Logger
	now    func() time.Time
	srv    *http.Server
}

// NewServer wires the API over the given store.
func NewServer(cfg Config, st *store.Store, log logger.Logger) *Server {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Server{cfg: cfg, store: st, logger: log, now: now}
}

// Router builds the route tree. Exposed so tests can drive it with httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/intents", s.handleCreateIntent)
		r.Get("/intents", s.handleListIntents)
		r.Get("/intents/{id}", s.handleGetIntent)
		r.Post("/intents/{id}/status", s.handleUpdateStatus)
		r.Get("/intents/{id}/secret", s.handleGetSecret)
		r.Get("/intents/{id}/price", s.handleGetPrice)
	})

	return r
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("API server listening on port %s", s.cfg.Port)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Ready != nil {
		if err := s.cfg.Ready(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ready"))
}

// metricsAuthMiddleware checks for a valid API key when one is configured.
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.cfg.MetricsKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.cfg.MetricsKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
