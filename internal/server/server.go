// Package server exposes a running batch over HTTP: Prometheus metrics, the
// delivery snapshot and the gate counters.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vnykmshr/sendgate/pkg/delivery"
	"github.com/vnykmshr/sendgate/pkg/ratelimit/window"
)

// Config configures a Server.
type Config struct {
	// Addr is the listen address, for example ":9090".
	Addr string

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Tracker backs /snapshot. The route is not registered when nil.
	Tracker *delivery.Tracker

	// Gate backs /gate. The route is not registered when nil.
	Gate window.Gate

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	logger *zap.Logger
}

// New creates a server and registers its routes.
func New(cfg Config) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	if cfg.Tracker != nil {
		r.Get("/snapshot", snapshotHandler(cfg.Tracker))
	}
	if cfg.Gate != nil {
		r.Get("/gate", gateHandler(cfg.Gate))
	}

	return &Server{
		router: r,
		logger: cfg.Logger,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing
func (s *Server) Handler() http.Handler {
	return s.router
}

func snapshotHandler(tracker *delivery.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, tracker.Snapshot())
	}
}

type gateView struct {
	Second int           `json:"second"`
	Hour   int           `json:"hour"`
	Day    int           `json:"day"`
	Limits window.Limits `json:"limits"`
}

func gateHandler(gate window.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		c := gate.Counts()
		writeJSON(w, gateView{
			Second: c.Second,
			Hour:   c.Hour,
			Day:    c.Day,
			Limits: gate.Limits(),
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
