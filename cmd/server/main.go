// Package main is the entrypoint for the Atomera API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tris077/Atomera/internal/api"
	"github.com/tris077/Atomera/internal/api/handler"
	mw "github.com/tris077/Atomera/internal/api/middleware"
	"github.com/tris077/Atomera/internal/artifacts"
	"github.com/tris077/Atomera/internal/cache"
	"github.com/tris077/Atomera/internal/config"
	"github.com/tris077/Atomera/internal/engine"
	"github.com/tris077/Atomera/internal/store"
)

const (
	version         = "0.3.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "remote_backend", cfg.RemoteEnabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create stores and execution backend
	pgStore := store.NewPostgresStore(pool)

	artifactStore, err := artifacts.NewStore(cfg.Dispatch.ArtifactDir)
	if err != nil {
		return fmt.Errorf("create artifact store: %w", err)
	}

	backend := newBackend(cfg, pgStore, artifactStore, logger)
	slog.Info("execution backend initialized", "backend", backend.Name())

	// 6. Dispatcher, worker pool, retention reaper
	dispatcher := engine.NewDispatcher(pgStore, redisCache, artifactStore, backend, cfg.Dispatch, logger)
	queue := engine.NewQueue(dispatcher, cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, logger)
	reaper := engine.NewReaper(pgStore, artifactStore, cfg.Dispatch.RetentionAge, cfg.Dispatch.ReapInterval, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); queue.Run(ctx) }()
	go func() { defer wg.Done(); reaper.Run(ctx) }()

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, 60),

		HealthHandler: handler.NewHealthHandler(pgStore, redisCache, backend.Name(), version),

		PredictHandler:   handler.NewPredictHandler(pgStore, queue),
		GetJobHandler:    handler.NewGetJobHandler(pgStore),
		ListJobsHandler:  handler.NewListJobsHandler(pgStore),
		DeleteJobHandler: handler.NewDeleteJobHandler(pgStore, artifactStore),
		GetResultHandler: handler.NewGetResultHandler(pgStore, artifactStore),
		ListPosesHandler: handler.NewListPosesHandler(artifactStore),
		GetPoseHandler:   handler.NewGetPoseHandler(artifactStore),

		ValidateProtein: handler.NewValidateProteinHandler(),
		ValidateLigand:  handler.NewValidateLigandHandler(),
		ExamplesHandler: handler.NewExamplesHandler(),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Workers stop once the signal context is cancelled
	wg.Wait()

	slog.Info("server stopped gracefully")
	return nil
}
