package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stocksavvy/stocksavvy/jobs"
)

func TestNewTask(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	for _, name := range []string{"cleanup", jobs.TaskCleanupSoldProducts} {
		task, err := NewTask(name, now)
		require.NoError(t, err)
		require.Equal(t, jobs.TaskCleanupSoldProducts, task.Type())

		var payload jobs.CleanupPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		require.Equal(t, "cli", payload.Trigger)
		require.True(t, payload.RequestedAt.Equal(now))
	}

	_, err := NewTask("anomaly", now)
	require.Error(t, err)
}

func TestNilCLI(t *testing.T) {
	var c *JobsCLI
	_, err := c.InspectQueue(t.Context())
	require.Error(t, err)
	_, err = c.Trigger(t.Context(), "cleanup")
	require.Error(t, err)
	require.NoError(t, c.Close())
}

func TestJobNames(t *testing.T) {
	require.Equal(t, []string{"cleanup", jobs.TaskCleanupSoldProducts}, JobNames())
}

func TestQueueStatsString(t *testing.T) {
	s := QueueStats{Queue: "default", Size: 3, Pending: 2, Retry: 1}
	require.Equal(t, "queue=default size=3 pending=2 active=0 scheduled=0 retry=1 archived=0 paused=false", s.String())
}
