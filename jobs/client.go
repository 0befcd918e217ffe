package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer submits cleanup runs.
type Enqueuer interface {
	EnqueueCleanup(ctx context.Context, payload CleanupPayload) (*asynq.TaskInfo, error)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client. The connection is opened lazily.
func NewClient(opt asynq.RedisConnOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(opt)}, nil
}

// EnqueueCleanup enqueues an on-demand cleanup run. Repeated requests within
// a minute collapse into the first one.
func (c *Client) EnqueueCleanup(ctx context.Context, payload CleanupPayload) (*asynq.TaskInfo, error) {
	task, err := NewCleanupSoldProductsTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Unique(time.Minute))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
