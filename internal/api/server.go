// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	apihandler "github.com/newthinker/driftlab/internal/api/handler/api"
	"github.com/newthinker/driftlab/internal/api/job"
	"github.com/newthinker/driftlab/internal/api/middleware"
	"github.com/newthinker/driftlab/internal/config"
	"github.com/newthinker/driftlab/internal/metrics"
	"github.com/newthinker/driftlab/internal/notifier"
	"github.com/newthinker/driftlab/internal/report"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP server for driftlab
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	jobs       *job.Store
	backtests  *apihandler.BacktestHandler

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MaxJobs     int
	JobTTL      time.Duration
	RunTimeout  time.Duration
	MetricsPath string
}

// Dependencies are the services the routes call into
type Dependencies struct {
	Runner   apihandler.Runner
	Defaults config.BacktestConfig
	Exporter  *report.Exporter   // optional
	Metrics   *metrics.Registry  // optional
	Notifiers *notifier.Registry // optional
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Runner == nil {
		return nil, fmt.Errorf("backtest runner required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	jobs := job.NewStore(cfg.MaxJobs, cfg.JobTTL)

	opts := []apihandler.HandlerOption{
		apihandler.WithRunTimeout(cfg.RunTimeout),
		apihandler.WithHandlerLogger(logger),
	}
	if deps.Exporter != nil {
		opts = append(opts, apihandler.WithExporter(deps.Exporter))
	}
	if deps.Metrics != nil {
		opts = append(opts, apihandler.WithJobGauge(deps.Metrics))
	}
	if deps.Notifiers != nil {
		opts = append(opts, apihandler.WithNotifiers(deps.Notifiers))
	}

	s := &Server{
		logger:      logger,
		mux:         mux,
		jobs:        jobs,
		backtests:   apihandler.NewBacktestHandler(jobs, deps.Runner, deps.Defaults, opts...),
		stopCleanup: make(chan struct{}),
	}

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	handler = metrics.LoggingMiddleware(logger)(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes(cfg, deps)
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	auth := middleware.APIKeyAuth(cfg.APIKey)
	v1 := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, auth(h))
	}

	v1("POST /api/v1/backtests", s.backtests.Create)
	v1("GET /api/v1/backtests", s.backtests.List)
	v1("GET /api/v1/backtests/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.backtests.GetStatus(w, r, r.PathValue("id"))
	})
	v1("GET /api/v1/backtests/{id}/trades.csv", func(w http.ResponseWriter, r *http.Request) {
		s.backtests.Trades(w, r, r.PathValue("id"))
	})

	if deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Start starts the HTTP server and the job cleanup loop
func (s *Server) Start() error {
	go s.cleanupLoop(time.Minute)

	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.jobs.Cleanup(); n > 0 {
				s.logger.Debug("expired jobs removed", zap.Int("count", n))
			}
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
