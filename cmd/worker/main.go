// Package main is the entrypoint for the FinSight analysis worker. It
// consumes queued analysis tasks and runs the agent pipeline against them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/adityakurhade/finsight/internal/agent"
	"github.com/adityakurhade/finsight/internal/cache"
	"github.com/adityakurhade/finsight/internal/config"
	"github.com/adityakurhade/finsight/internal/document"
	"github.com/adityakurhade/finsight/internal/jobs"
	"github.com/adityakurhade/finsight/internal/queue"
	"github.com/adityakurhade/finsight/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"agent_provider", cfg.Agent.Provider,
		"concurrency", cfg.Worker.Concurrency,
		"max_retries", cfg.Worker.MaxRetries,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	pipeline, err := agent.NewPipeline(cfg.Agent)
	if err != nil {
		return fmt.Errorf("create agent pipeline: %w", err)
	}
	slog.Info("agent pipeline initialized", "provider", pipeline.Name())

	docs, err := document.NewStorage(cfg.Upload, logger)
	if err != nil {
		return fmt.Errorf("create document storage: %w", err)
	}

	pgStore := store.NewPostgresStore(pool)
	engine := jobs.NewEngine(pgStore, redisCache, pipeline, docs, cfg.Worker, logger)

	srv, err := queue.NewServer(cfg.Redis.URL, cfg.Worker.Concurrency, engine.Handle, logger)
	if err != nil {
		return fmt.Errorf("create task server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("worker consuming tasks")
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining tasks...")
	}

	srv.Shutdown()
	if err := <-errCh; err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}
