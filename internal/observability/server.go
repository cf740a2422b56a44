package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rafaeljc/fitbit-ingest/internal/config"
)

// StatusFunc returns a JSON-serializable view of the running ingest loop.
type StatusFunc func() any

// Server exposes probes, metrics and the scheduler status on a dedicated port,
// away from the outbound Fitbit traffic.
type Server struct {
	logger   *slog.Logger
	cfg      *config.ObservabilityConfig
	router   *chi.Mux
	server   *http.Server
	status   StatusFunc
	checkers []Checker

	shutdownTimeout time.Duration
}

// NewServer creates the ops server. status may be nil, in which case the
// status route is not mounted. checkers are evaluated by the readiness probe.
func NewServer(logger *slog.Logger, cfg *config.ObservabilityConfig, status StatusFunc, checkers ...Checker) *Server {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	s := &Server{
		logger:   logger,
		cfg:      cfg,
		router:   r,
		status:   status,
		checkers: checkers,

		shutdownTimeout: cfg.Timeout,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get(s.cfg.LivenessPath, s.liveness)
	s.router.Get(s.cfg.ReadinessPath, s.readiness)
	s.router.Method(http.MethodGet, s.cfg.MetricsPath, promhttp.Handler())

	if s.status != nil && s.cfg.StatusPath != "" {
		s.router.With(render.SetContentType(render.ContentTypeJSON)).Get(s.cfg.StatusPath, s.taskStatus)
	}
}

// WithShutdownTimeout bounds the graceful shutdown in ListenAndServe.
// Non-positive values keep the default, the probe timeout.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	if d > 0 {
		s.shutdownTimeout = d
	}
	return s
}

// Handler returns the router, mainly for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down within the
// shutdown timeout. It blocks, so callers run it inside an errgroup.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%s", s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Timeout,
		WriteTimeout: s.cfg.Timeout,
		IdleTimeout:  s.cfg.Timeout * 3,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting observability server",
			slog.String("addr", addr),
			slog.String("liveness_path", s.cfg.LivenessPath),
			slog.String("readiness_path", s.cfg.ReadinessPath),
			slog.String("metrics_path", s.cfg.MetricsPath),
			slog.String("status_path", s.cfg.StatusPath),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("observability server failed: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("stopping observability server")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown observability server: %w", err)
	}
	return <-errCh
}
