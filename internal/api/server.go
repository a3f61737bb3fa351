// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/arcanumhq/arcanum/internal/iam/authz"
	"github.com/arcanumhq/arcanum/internal/iam/credential"
	"github.com/arcanumhq/arcanum/internal/iam/mfa"
	"github.com/arcanumhq/arcanum/internal/iam/oauth"
	"github.com/arcanumhq/arcanum/internal/iam/session"
	"github.com/arcanumhq/arcanum/internal/platform/config"
	"github.com/arcanumhq/arcanum/internal/platform/constants"
	"github.com/arcanumhq/arcanum/internal/platform/middleware"
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

	// Metrics serves the Prometheus scrape endpoint.
	Metrics http.Handler

	// Credential handles registration, login, and password lifecycle.
	Credential *credential.Handler

	// MFA handles factor enrollment, challenges, and recovery codes.
	MFA *mfa.Handler

	// Session handles session listing and revocation.
	Session *session.Handler

	// Authz handles permission checks, roles, grants, and scope creation.
	Authz *authz.Handler

	// OAuth handles external identity-provider exchange and connections.
	OAuth *oauth.Handler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
//
// The two auth gates differ on purpose: RequireAuth admits sessions still
// pending their MFA challenge (so they can reach the verification
// endpoints), RequireVerified admits only promoted sessions.
func NewServer(cfg *config.Config, log *slog.Logger, verifier middleware.SessionVerifier, limiter *middleware.IPRateLimiter, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(limiter.Handler())
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.Authenticate(verifier))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	r.Method(http.MethodGet, "/metrics", h.Metrics)

	// # Application API
	// Domain-specific route groups mounted under versioned prefix.
	r.Route("/api/v1", func(api chi.Router) {
		api.Mount("/auth", h.Credential.Routes(middleware.RequireAuth))
		api.Mount("/auth/mfa", h.MFA.Routes(middleware.RequireAuth, middleware.RequireVerified))
		api.Mount("/oauth", h.OAuth.Routes(middleware.RequireVerified))

		// Session and authorization surfaces require a fully verified
		// session; a pending session may only finish its MFA challenge.
		api.Group(func(verified chi.Router) {
			verified.Use(middleware.RequireVerified)
			verified.Mount("/sessions", h.Session.Routes())
			verified.Mount("/authz", h.Authz.Routes())
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
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
