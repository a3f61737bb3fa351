// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

// Command api is the entry point for the Arcanum IAM server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire domain services and HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arcanumhq/arcanum/internal/api"
	"github.com/arcanumhq/arcanum/internal/iam/audit"
	"github.com/arcanumhq/arcanum/internal/iam/authz"
	"github.com/arcanumhq/arcanum/internal/iam/credential"
	"github.com/arcanumhq/arcanum/internal/iam/guard"
	"github.com/arcanumhq/arcanum/internal/iam/mfa"
	"github.com/arcanumhq/arcanum/internal/iam/notify"
	"github.com/arcanumhq/arcanum/internal/iam/oauth"
	"github.com/arcanumhq/arcanum/internal/iam/session"
	"github.com/arcanumhq/arcanum/internal/iam/token"
	"github.com/arcanumhq/arcanum/internal/platform/config"
	"github.com/arcanumhq/arcanum/internal/platform/constants"
	"github.com/arcanumhq/arcanum/internal/platform/metrics"
	"github.com/arcanumhq/arcanum/internal/platform/middleware"
	"github.com/arcanumhq/arcanum/internal/platform/migration"
	pgstore "github.com/arcanumhq/arcanum/internal/platform/postgres"
	redisstore "github.com/arcanumhq/arcanum/internal/platform/redis"
	"github.com/arcanumhq/arcanum/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "arcanum-iam"))
	slog.SetDefault(log)

	log.Info("[Arcanum] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "arcanum-iam"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Platform Services ──────────────────────────────────────────────
	registry := metrics.New()
	limiter := guard.New(rdb)
	recorder := audit.NewPostgresRecorder(pool, log)
	hasher := sec.NewPasswordHasher(sec.DefaultArgon2Params())

	// Delivery gateway. The log sender stands in until a real SMS/email
	// transport is configured.
	var sender notify.Sender = &notify.Log{Logger: log}

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	tokenService := token.NewService(token.NewPostgresStore(pool))
	sessionService := session.NewService(session.NewPostgresStore(pool), recorder, registry, log)

	mfaService := mfa.NewService(mfa.Deps{
		Store:      mfa.NewPostgresStore(pool),
		Challenges: mfa.NewRedisChallengeStore(rdb),
		Limiter:    limiter,
		Sender:     sender,
		Verifier:   &mfa.ES256Verifier{Origin: cfg.WebAuthnOrigin},
		Recorder:   recorder,
		Metrics:    registry,
		Logger:     log,
		Issuer:     "Arcanum",
		RPID:       cfg.WebAuthnRPID,
	})

	accountStore := credential.NewPostgresStore(pool)
	credentialService := credential.NewService(credential.Deps{
		Store:    accountStore,
		Tokens:   tokenService,
		Limiter:  limiter,
		Hasher:   hasher,
		Sender:   sender,
		Sessions: sessionService,
		MFA:      mfaService,
		Recorder: recorder,
		Metrics:  registry,
		Logger:   log,
	})

	resolver := authz.NewResolver(authz.NewPostgresStore(pool), recorder, registry, log)

	var providers []oauth.Provider
	if cfg.OAuthProviderName != "" {
		providers = append(providers, oauth.NewHTTPProvider(oauth.HTTPProviderConfig{
			Name:         cfg.OAuthProviderName,
			TokenURL:     cfg.OAuthTokenURL,
			UserInfoURL:  cfg.OAuthUserInfoURL,
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURI:  cfg.OAuthRedirectURI,
		}))
		log.Info("oauth_provider_registered", slog.String("provider", cfg.OAuthProviderName))
	}
	oauthService := oauth.NewService(oauth.NewPostgresStore(pool), accountStore, mfaService, providers, recorder, log)

	// ── 8. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:   liveness,
		Readiness:  readiness,
		Metrics:    registry.Handler(),
		Credential: credential.NewHandler(credentialService, sessionService, sessionService),
		MFA:        mfa.NewHandler(mfaService, sessionService),
		Session:    session.NewHandler(sessionService),
		Authz:      authz.NewHandler(resolver),
		OAuth:      oauth.NewHandler(oauthService, sessionService),
	}

	rateLimiterStop := make(chan struct{})
	defer close(rateLimiterStop)
	ipLimiter := middleware.NewIPRateLimiter(rateLimiterStop)

	server := api.NewServer(cfg, log, sessionService, ipLimiter, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
