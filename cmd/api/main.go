// Copyright (c) 2026 Kantan Labs. All rights reserved.

// Command api is the entry point for the Kantan HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Register Prometheus collectors.
//  7. Wire domain services and HTTP handlers.
//  8. Start HTTP server with graceful shutdown.
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

	"github.com/kantan-dev/kantan/internal/api"
	"github.com/kantan-dev/kantan/internal/audit"
	"github.com/kantan-dev/kantan/internal/auth"
	"github.com/kantan-dev/kantan/internal/authz"
	"github.com/kantan-dev/kantan/internal/iam"
	"github.com/kantan-dev/kantan/internal/iam/ability"
	"github.com/kantan-dev/kantan/internal/platform/cache"
	"github.com/kantan-dev/kantan/internal/platform/config"
	"github.com/kantan-dev/kantan/internal/platform/constants"
	"github.com/kantan-dev/kantan/internal/platform/migration"
	"github.com/kantan-dev/kantan/internal/platform/obs"
	pgstore "github.com/kantan-dev/kantan/internal/platform/postgres"
	redisstore "github.com/kantan-dev/kantan/internal/platform/redis"
	"github.com/kantan-dev/kantan/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Kantan] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
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

	// ── 6. Observability ──────────────────────────────────────────────────
	obs.Init()

	// ── 7. Token Service ──────────────────────────────────────────────────
	// Missing or unreadable signing keys are fatal: the server must never
	// start without the ability to verify what it issued.
	tokenService, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	// ── 8. Health Handlers ────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 9. Domain Wiring ──────────────────────────────────────────────────
	cacheStore := cache.New(rdb)

	userRepository := iam.NewUserRepository(pool)
	roleRepository := iam.NewRoleRepository(pool)
	permissionRepository := iam.NewPermissionRepository(pool)

	auditRecorder := audit.NewRecorder(audit.NewPostgresStore(pool))
	abilityBuilder := ability.NewBuilder(roleRepository, permissionRepository)
	guard := authz.NewGuard(tokenService, abilityBuilder, auditRecorder)

	authService := auth.NewService(
		userRepository,
		roleRepository,
		permissionRepository,
		tokenService,
		auth.NewRefreshTokenStore(cacheStore),
		auditRecorder,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)

	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, guard.Authenticate),
		IAM:       iam.NewHandler(userRepository, roleRepository, permissionRepository),
		Audit:     audit.NewHandler(auditRecorder),
	}

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	server := api.NewServer(context.Background(), cfg, log, guard, handlers)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
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
