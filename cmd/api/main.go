// Package main is the entrypoint for the marketplace API server.
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

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/verimarket/backend/internal/account"
	"github.com/verimarket/backend/internal/auth"
	"github.com/verimarket/backend/internal/cache"
	"github.com/verimarket/backend/internal/config"
	"github.com/verimarket/backend/internal/images"
	"github.com/verimarket/backend/internal/jobs"
	"github.com/verimarket/backend/internal/ledger"
	mw "github.com/verimarket/backend/internal/middleware"
	"github.com/verimarket/backend/internal/router"
	"github.com/verimarket/backend/internal/store"
	"github.com/verimarket/backend/internal/submissions"
	"github.com/verimarket/backend/internal/sweeper"
	"github.com/verimarket/backend/internal/validation"
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
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "uploads", cfg.S3.Enabled(), "rate_limit", cfg.Redis.URL != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	if err := store.RunMigrations(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	slog.Info("database migrations applied")

	// Repositories and services
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.Auth)
	ledgerSvc := ledger.NewService(pool, ledger.NewRepository(pool), logger)
	jobsSvc := jobs.NewService(pool, jobs.NewRepository(pool), authRepo, ledgerSvc, logger)
	subsSvc := submissions.NewService(pool, submissions.NewRepository(pool), jobs.NewRepository(pool), ledgerSvc, logger)

	// Deadline sweeper
	schedule, err := cfg.Sweeper.ParseSchedule()
	if err != nil {
		return fmt.Errorf("parse sweep schedule: %w", err)
	}
	sw := sweeper.New(jobsSvc, cfg.Sweeper.BatchSize, cfg.Sweeper.Concurrency, logger)
	workers := river.NewWorkers()
	river.AddWorker(workers, sweeper.NewWorker(sw))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{sweeper.PeriodicJob(schedule)},
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("create river client: %w", err)
	}
	// River gets its own context so Stop can drain in-flight sweeps on shutdown.
	if err := riverClient.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start river client: %w", err)
	}
	slog.Info("sweeper scheduled", "schedule", cfg.Sweeper.Schedule)

	// Optional dependencies
	checks := map[string]router.Pinger{"database": pool}

	var rateLimit *mw.RateLimit
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		rateLimit = mw.NewRateLimit(redisCache, cfg.Redis.RequestsPerMinute)
		checks["redis"] = redisCache
		slog.Info("redis connected")
	}

	var signer submissions.ImageSigner
	if cfg.S3.Enabled() {
		presigner, err := images.NewPresigner(ctx, cfg.S3)
		if err != nil {
			return fmt.Errorf("create s3 presigner: %w", err)
		}
		signer = presigner
		slog.Info("image uploads enabled", "bucket", cfg.S3.Bucket)
	}

	validator, err := validation.NewValidator()
	if err != nil {
		return fmt.Errorf("compile request schemas: %w", err)
	}

	handler := router.New(router.Dependencies{
		Tokens:      authSvc,
		Validator:   validator,
		RateLimit:   rateLimit,
		Logger:      logger,
		Auth:        auth.NewHandler(authSvc, logger),
		Account:     account.NewHandler(authSvc, ledgerSvc, logger),
		Jobs:        jobs.NewHandler(jobsSvc, logger),
		Submissions: submissions.NewHandler(subsSvc, signer, logger),
		Health:      router.HealthHandler(checks),
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(handler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsHandler,
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
	if err := riverClient.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop river client: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
