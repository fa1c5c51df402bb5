// Package main is the entrypoint for the FinSight API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adityakurhade/finsight/internal/api"
	"github.com/adityakurhade/finsight/internal/api/handler"
	"github.com/adityakurhade/finsight/internal/api/response"
	"github.com/adityakurhade/finsight/internal/cache"
	"github.com/adityakurhade/finsight/internal/config"
	"github.com/adityakurhade/finsight/internal/document"
	"github.com/adityakurhade/finsight/internal/jobs"
	"github.com/adityakurhade/finsight/internal/queue"
	"github.com/adityakurhade/finsight/internal/store"
)

const shutdownTimeout = 30 * time.Second

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
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "agent_provider", cfg.Agent.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	broker, err := queue.NewClient(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create queue client: %w", err)
	}
	defer broker.Close()

	docs, err := document.NewStorage(cfg.Upload, logger)
	if err != nil {
		return fmt.Errorf("create document storage: %w", err)
	}

	pgStore := store.NewPostgresStore(pool)
	submitSvc := jobs.NewSubmitService(pgStore, redisCache, broker, docs, cfg.Worker.PendingTTL, logger)
	statusSvc := jobs.NewStatusService(pgStore, redisCache, cfg.Worker.ResultTTL, cfg.Worker.PendingTTL, logger)

	router := api.NewRouter(api.Dependencies{
		HealthHandler: healthHandler(pgStore, redisCache),

		AnalyzeHandler:        handler.NewAnalyzeHandler(submitSvc, cfg.Upload.MaxBytes),
		StatusHandler:         handler.NewStatusHandler(statusSvc),
		ListAnalysesHandler:   handler.NewListAnalysesHandler(pgStore),
		StatsHandler:          handler.NewStatsHandler(pgStore),
		DeleteAnalysisHandler: handler.NewDeleteAnalysisHandler(pgStore),

		CreateUserHandler: handler.NewCreateUserHandler(pgStore),
		GetUserHandler:    handler.NewGetUserHandler(pgStore),
		ListUsersHandler:  handler.NewListUsersHandler(pgStore),
		DeleteUserHandler: handler.NewDeleteUserHandler(pgStore),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
