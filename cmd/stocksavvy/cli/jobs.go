// Package cli implements the `stocksavvy jobs` operator subcommand.
package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stocksavvy/stocksavvy/jobs"
)

// taskBuilders maps the names accepted on the command line to task
// constructors. Each task type is also reachable by its full type name.
var taskBuilders = map[string]func(now time.Time) (*asynq.Task, error){
	"cleanup": func(now time.Time) (*asynq.Task, error) {
		return jobs.NewCleanupSoldProductsTask(jobs.CleanupPayload{Trigger: "cli", RequestedAt: now})
	},
}

func init() {
	taskBuilders[jobs.TaskCleanupSoldProducts] = taskBuilders["cleanup"]
}

// JobNames lists the names Trigger accepts.
func JobNames() []string {
	names := make([]string, 0, len(taskBuilders))
	for name := range taskBuilders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewTask builds the task for a job name accepted by Trigger.
func NewTask(name string, now time.Time) (*asynq.Task, error) {
	build, ok := taskBuilders[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("jobs cli: unknown job %q (known: %s)", name, strings.Join(JobNames(), ", "))
	}
	return build(now)
}

// JobsCLI enqueues tasks and reads queue state for operators.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI connects lazily to the Redis behind the job queue.
func NewJobsCLI(opt asynq.RedisConnOpt) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(opt), inspector: asynq.NewInspector(opt)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	if c == nil {
		return nil
	}
	return errors.Join(c.inspector.Close(), c.client.Close())
}

// Trigger enqueues the named job now.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	task, err := NewTask(name, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault))
}

// QueueStats summarises the default queue.
type QueueStats struct {
	Queue     string `json:"queue"`
	Size      int    `json:"size"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Paused    bool   `json:"paused"`
}

func (s QueueStats) String() string {
	return fmt.Sprintf("queue=%s size=%d pending=%d active=%d scheduled=%d retry=%d archived=%d paused=%t",
		s.Queue, s.Size, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived, s.Paused)
}

// InspectQueue reads the default queue counters.
func (c *JobsCLI) InspectQueue(_ context.Context) (QueueStats, error) {
	if c == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, fmt.Errorf("jobs cli: inspect %s: %w", jobs.QueueDefault, err)
	}
	return QueueStats{
		Queue:     info.Queue,
		Size:      info.Size,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Paused:    info.Paused,
	}, nil
}
