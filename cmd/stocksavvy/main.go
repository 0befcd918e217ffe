package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stocksavvy/stocksavvy/cmd/stocksavvy/cli"
	"github.com/stocksavvy/stocksavvy/internal/analytics"
	"github.com/stocksavvy/stocksavvy/internal/app"
	"github.com/stocksavvy/stocksavvy/internal/observability"
	"github.com/stocksavvy/stocksavvy/internal/platform/cache"
	"github.com/stocksavvy/stocksavvy/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobs(ctx, app.QueueOptions(cfg), os.Args[2:], os.Stdout); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

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

	metrics := observability.NewMetrics()

	redisOpts := app.QueueOptions(cfg)
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	api, err := app.BuildAPI(ctx, app.Deps{
		Config:    cfg,
		Logger:    logger,
		Store:     st,
		Redis:     redisClient,
		Metrics:   metrics,
		Inspector: inspector,
		Jobs:      jobClient,
	})
	if err != nil {
		logger.Error("build api", slog.Any("error", err))
		os.Exit(1)
	}

	// The worker announces reloads after archiving; refresh the in-memory ledger.
	api.Cache.OnBump(func(version string) {
		if err := api.Ledger.Load(ctx); err != nil {
			logger.Warn("reload ledger", slog.String("version", version), slog.Any("error", err))
		}
	})
	go func() {
		if err := api.Cache.ListenForInvalidation(ctx, analytics.ReloadChannel); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("reload listener stopped", slog.Any("error", err))
		}
	}()

	if cfg.CleanupInProcess {
		go api.Ledger.RunCleanup(ctx, cfg.CleanupInterval)
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      api.Handler,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobs handles `stocksavvy jobs trigger <name>` and `stocksavvy jobs stats`.
func runJobs(ctx context.Context, opt asynq.RedisConnOpt, args []string, out io.Writer) error {
	usage := fmt.Errorf("usage: stocksavvy jobs trigger <%s> | stats", strings.Join(cli.JobNames(), "|"))
	if len(args) == 0 {
		return usage
	}
	switch {
	case args[0] == "trigger" && len(args) == 2:
		if _, err := cli.NewTask(args[1], time.Now()); err != nil {
			return err
		}
	case args[0] == "stats" && len(args) == 1:
	default:
		return usage
	}

	helper := cli.NewJobsCLI(opt)
	defer helper.Close()

	if args[0] == "stats" {
		stats, err := helper.InspectQueue(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, stats)
		return err
	}
	info, err := helper.Trigger(ctx, args[1])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "enqueued %s on %s\n", info.ID, info.Queue)
	return err
}
