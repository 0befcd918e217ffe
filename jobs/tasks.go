package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCleanupSoldProducts archives sold products past the retention window.
	TaskCleanupSoldProducts = "ledger:cleanup_sold"
	// DefaultCleanupCron runs the sweep daily at 03:00 UTC.
	DefaultCleanupCron = "0 3 * * *"
)

// CleanupPayload describes a cleanup run.
type CleanupPayload struct {
	Trigger     string    `json:"trigger"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewCleanupSoldProductsTask constructs the cleanup task.
func NewCleanupSoldProductsTask(payload CleanupPayload) (*asynq.Task, error) {
	if payload.Trigger == "" {
		payload.Trigger = "cron"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCleanupSoldProducts, data, asynq.Queue(QueueDefault), asynq.MaxRetry(0)), nil
}
