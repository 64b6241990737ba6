// Package api provides the HTTP server of the ComplaintDesk daemon.
//
// It exposes a health check, Prometheus metrics and, when the Twilio
// transport is active, the inbound Twilio webhook.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Opts holds the handlers mounted on the server.
type Opts struct {
	Metrics       http.Handler
	TwilioWebhook http.HandlerFunc
	HealthChecks  map[string]HealthCheck
}

// Option configures the server.
type Option func(*Opts)

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(o *Opts) { o.Metrics = h }
}

// WithTwilioWebhook mounts h on /twilio/webhook.
func WithTwilioWebhook(h http.HandlerFunc) Option {
	return func(o *Opts) { o.TwilioWebhook = h }
}

// WithHealthCheck adds a named check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(o *Opts) {
		if o.HealthChecks == nil {
			o.HealthChecks = make(map[string]HealthCheck)
		}
		o.HealthChecks[name] = check
	}
}

// Server is the daemon's HTTP server.
type Server struct {
	httpServer *http.Server
	checks     map[string]HealthCheck
}

// NewServer builds a Server listening on addr.
func NewServer(addr string, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if addr == "" {
		addr = DefaultAddr
	}

	s := &Server{checks: cfg.HealthChecks}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthHandler)
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}
	if cfg.TwilioWebhook != nil {
		mux.HandleFunc("/twilio/webhook", cfg.TwilioWebhook)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Starting API server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			slog.Warn("Server.healthHandler: check failed", "check", name, "error", err)
			writeJSONResponse(w, http.StatusServiceUnavailable, Response{Status: StatusError, Error: name + ": " + err.Error()})
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, Response{Status: StatusOK})
}
