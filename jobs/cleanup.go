package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stocksavvy/stocksavvy/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Ledger is the slice of the inventory service the cleanup job drives.
type Ledger interface {
	Load(ctx context.Context) error
	CleanupOldSoldProducts(ctx context.Context) (int, error)
}

// ReloadAnnouncer tells API processes their ledger snapshot is stale.
type ReloadAnnouncer interface {
	AnnounceReload(ctx context.Context) error
}

// CleanupJob archives sold products that are older than the retention window.
type CleanupJob struct {
	Ledger   Ledger
	Announce ReloadAnnouncer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Timeout  time.Duration
}

// NewCleanupJob wires dependencies for the cleanup handler.
func NewCleanupJob(ledger Ledger, announce ReloadAnnouncer, logger *slog.Logger, metrics *jobmetrics.Metrics) *CleanupJob {
	return &CleanupJob{Ledger: ledger, Announce: announce, Logger: logger, Metrics: metrics, Timeout: time.Minute}
}

// Handle processes cleanup tasks. Failures are logged and recorded but never
// retried; the next scheduled sweep picks up whatever this one missed.
func (j *CleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("cleanup: handler not configured")
	}
	var payload CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("cleanup: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	run := j.metrics().Track(TaskCleanupSoldProducts)
	if err := run.End(j.sweep(ctx, payload)); err != nil {
		return fmt.Errorf("cleanup: %w: %w", err, asynq.SkipRetry)
	}
	return nil
}

// sweep reloads the ledger, archives expired sold products and tells API
// processes to refresh when anything changed.
func (j *CleanupJob) sweep(ctx context.Context, payload CleanupPayload) error {
	logger := j.logger().With(slog.String("trigger", payload.Trigger))
	if payload.RequestedBy != "" {
		logger = logger.With(slog.String("requested_by", payload.RequestedBy))
	}
	logger.Info("starting cleanup")
	started := time.Now()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	// The API process may have written since the last run.
	if err := j.Ledger.Load(ctx); err != nil {
		logger.Error("reload ledger", slog.Any("error", err))
		return err
	}
	count, err := j.Ledger.CleanupOldSoldProducts(ctx)
	if err != nil {
		logger.Error("cleanup sold products", slog.Any("error", err))
		return err
	}
	j.metrics().AddArchived(count)
	if count > 0 && j.Announce != nil {
		if err := j.Announce.AnnounceReload(ctx); err != nil {
			logger.Warn("announce reload", slog.Any("error", err))
		}
	}

	logger.Info("completed cleanup", slog.Int("archived", count), slog.Duration("duration", time.Since(started)))
	return nil
}

func (j *CleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCleanupSoldProducts))
	}
	return slog.Default().With(slog.String("job", TaskCleanupSoldProducts))
}

func (j *CleanupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
