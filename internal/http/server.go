// Package http implements the read-only Status API of SPEC_FULL.md §4.5:
// liveness/readiness probes, a JSON snapshot dump, Prometheus exposition,
// and a WebSocket status push. Grounded on the teacher's internal/http
// package — NewServer's middleware chain, setupHealthChecks' checker
// registration, and the liveness/readiness handler bodies are kept
// close to the original shape, but the v1 API, floor/elevator mutating
// routes, and legacy routes are all dropped: this node's Status API
// never accepts hall or cab calls, so there is nothing left to mutate.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fjellheim/elevator-fleet/internal/constants"
	"github.com/fjellheim/elevator-fleet/internal/domain"
	"github.com/fjellheim/elevator-fleet/internal/infra/config"
	"github.com/fjellheim/elevator-fleet/internal/infra/health"
)

// CoordinatorView is the subset of *coordinator.Coordinator the Status
// API depends on. Declared here (rather than importing internal/coordinator
// directly) to avoid the http package depending on the coordinator's own
// dependency graph; satisfied by *coordinator.Coordinator as-is.
type CoordinatorView interface {
	Snapshot() *domain.ElevatorData
}

// Server is the Status API's HTTP server.
type Server struct {
	coordinator   CoordinatorView
	selfID        string
	httpServer    *http.Server
	cfg           *config.Config
	logger        *slog.Logger
	healthService *health.HealthService
	hub           *statusHub
}

// NewServer wires the Status API's routes and middleware chain. checkers
// are registered in addition to the always-present liveness checker —
// callers pass in FSM/peer/assigner checkers built from closures over
// their own state (see internal/infra/health/fsm_checker.go) since the
// Status API itself holds no direct reference to the FSM or Network.
func NewServer(cfg *config.Config, selfID string, coord CoordinatorView, checkers ...health.HealthChecker) *Server {
	s := &Server{
		coordinator:   coord,
		selfID:        selfID,
		cfg:           cfg,
		logger:        slog.With(slog.String("component", constants.ComponentHTTPServer)),
		healthService: health.NewHealthService(5 * time.Second),
		hub:           newStatusHub(cfg.StatusAPI.UpdateInterval.Duration(), coord),
	}

	s.healthService.Register(health.NewLivenessChecker())
	readinessDeps := make([]health.HealthChecker, 0, len(checkers))
	for _, c := range checkers {
		s.healthService.Register(c)
		readinessDeps = append(readinessDeps, c)
	}
	s.healthService.Register(health.NewReadinessChecker(readinessDeps...))

	addr := fmt.Sprintf(":%d", cfg.StatusAPI.Port)

	middlewareChain := ChainMiddleware(
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger),
		RecoveryMiddleware(s.logger),
		CORSMiddleware(),
		SecurityHeadersMiddleware(),
		NewRateLimitMiddleware(cfg.StatusAPI.RateLimitRPM, s.logger).Handler(),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.livenessHandler)
	mux.HandleFunc("/readyz", s.readinessHandler)
	mux.HandleFunc("/status", s.statusHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws/status", s.hub.serveWS)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      middlewareChain(mux),
		ReadTimeout:  cfg.StatusAPI.ReadTimeout.Duration(),
		WriteTimeout: cfg.StatusAPI.WriteTimeout.Duration(),
		IdleTimeout:  cfg.StatusAPI.IdleTimeout.Duration(),
	}

	return s
}

// Start runs the HTTP server and the status hub's broadcast loop until
// either exits. It blocks; run it in its own goroutine.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.run(ctx)
	s.logger.Info("status API listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and closes any open
// WebSocket connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	return s.httpServer.Shutdown(ctx)
}
