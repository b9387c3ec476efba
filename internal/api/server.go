// Copyright (c) 2026 Kantan Labs. All rights reserved.

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.

# Authentication Topology

Routes mounted outside the guard (health probes, metrics, the public auth
endpoints) skip authentication entirely and are never audited. Everything
under the guarded group requires a valid bearer token, and policy-checked
routes additionally produce one audit entry per request.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kantan-dev/kantan/internal/audit"
	"github.com/kantan-dev/kantan/internal/auth"
	"github.com/kantan-dev/kantan/internal/authz"
	"github.com/kantan-dev/kantan/internal/iam"
	"github.com/kantan-dev/kantan/internal/platform/config"
	"github.com/kantan-dev/kantan/internal/platform/constants"
	"github.com/kantan-dev/kantan/internal/platform/middleware"
	"github.com/kantan-dev/kantan/internal/platform/obs"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
//
// # Usage
//
// New domains add a field here — no other change to server.go is required.
type Handlers struct {
	// Liveness is the /health handler — always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler — returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Auth handles the authentication lifecycle (register, login, refresh, logout).
	Auth *auth.Handler

	// IAM handles the credential directory read surface (users, roles, permissions).
	IAM *iam.Handler

	// Audit handles the audit trail read surface.
	Audit *audit.Handler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(context context.Context, cfg *config.Config, log *slog.Logger, guard *authz.Guard, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(obs.Instrument)
	r.Use(middleware.RateLimit(context))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated probes for container orchestration and scraping.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	r.Handle("/metrics", obs.Handler())

	// require adapts a (action, subject) pair into the guard's policy middleware.
	require := func(action, subject string) func(http.Handler) http.Handler {
		return guard.Require(authz.Policy{Action: action, Subject: subject})
	}

	// # Application API
	// Domain-specific route groups mounted under versioned prefix.
	r.Route("/api/v1", func(api chi.Router) {
		// The auth handler mounts its own public/protected split.
		api.Mount("/auth", h.Auth.Routes())

		// Everything else requires an authenticated identity.
		api.Group(func(protected chi.Router) {
			protected.Use(guard.Authenticate)
			protected.Mount("/", h.IAM.Routes(require))
			protected.Mount("/audit-logs", h.Audit.Routes(require))
		})
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
