package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stocksavvy/stocksavvy/internal/analytics"
	"github.com/stocksavvy/stocksavvy/internal/app"
	"github.com/stocksavvy/stocksavvy/internal/inventory"
	jobmetrics "github.com/stocksavvy/stocksavvy/internal/jobs"
	"github.com/stocksavvy/stocksavvy/internal/platform/cache"
	"github.com/stocksavvy/stocksavvy/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	st, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			logger.Warn("store close", slog.Any("error", err))
		}
	}()

	redisClient, err := cache.New(ctx, app.RedisOptions(cfg))
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	analyticsCache := analytics.NewCache(redisClient, cfg.CacheTTL)
	ledger := inventory.NewService(st, logger, inventory.ServiceConfig{
		UniqueProductIDs: cfg.UniqueProductIDs,
		SoldRetention:    cfg.CleanupRetention,
	}, inventory.WithChangeHandler(analyticsCache))

	cleanupJob := jobs.NewCleanupJob(ledger, analyticsCache, logger, jobmetrics.NewMetrics(nil))

	cleanupTask, err := jobs.NewCleanupSoldProductsTask(jobs.CleanupPayload{Trigger: "cron"})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	var cron []jobs.CronRegistration
	if cfg.CleanupCron != "" {
		cron = append(cron, jobs.CronRegistration{Spec: cfg.CleanupCron, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(0)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: app.QueueOptions(cfg),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCleanupSoldProducts, Handler: cleanupJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
