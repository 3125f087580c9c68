// Package metrics exposes the Prometheus scrape endpoint and a liveness
// probe for the engine process.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"trade_engine/internal/core"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker reports whether a component is in a degraded state.
type HealthChecker interface {
	CheckHealth() error
}

// Server serves /metrics for Prometheus and /healthz for probes.
type Server struct {
	port     int
	logger   core.ILogger
	checkers []HealthChecker
	srv      *http.Server
}

// NewServer creates a metrics server. Checkers are consulted by /healthz;
// any failing checker yields a 503.
func NewServer(port int, logger core.ILogger, checkers ...HealthChecker) *Server {
	return &Server{
		port:     port,
		logger:   logger.WithField("component", "metrics_server"),
		checkers: checkers,
	}
}

// Start starts the HTTP server in the background.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		s.logger.Info("Starting metrics server", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server failed", "error", err.Error())
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, c := range s.checkers {
		if err := c.CheckHealth(); err != nil {
			s.logger.Warn("Health check failed", "error", err.Error())
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Stop gracefully stops the metrics server
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("Stopping metrics server")
	return s.srv.Shutdown(ctx)
}
