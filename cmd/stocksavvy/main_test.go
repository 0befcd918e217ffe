package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/stocksavvy/stocksavvy/internal/app"
	_ "github.com/stocksavvy/stocksavvy/testing"
)

func TestMainSkipsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	main()
}

func TestRunJobsUsage(t *testing.T) {
	ctx := context.Background()
	opt := asynq.RedisClientOpt{Addr: "127.0.0.1:0"}
	var out bytes.Buffer
	require.Error(t, runJobs(ctx, opt, nil, &out))
	require.Error(t, runJobs(ctx, opt, []string{"trigger"}, &out))
	require.Error(t, runJobs(ctx, opt, []string{"trigger", "reindex"}, &out))
	require.Error(t, runJobs(ctx, opt, []string{"stats", "extra"}, &out))
	require.Error(t, runJobs(ctx, opt, []string{"replay"}, &out))
	require.Empty(t, out.String())
}
