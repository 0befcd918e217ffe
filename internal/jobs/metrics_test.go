package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("ledger:cleanup_sold").End(nil))
	err := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger:cleanup_sold").End(err), err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:cleanup_sold", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:cleanup_sold", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("ledger:cleanup_sold")))
	require.Positive(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("ledger:cleanup_sold")))
}

func TestAddArchived(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddArchived(3)
	m.AddArchived(0)
	require.Equal(t, 3.0, testutil.ToFloat64(m.archived))

	var nilMetrics *Metrics
	require.NotPanics(t, func() { nilMetrics.AddArchived(1) })
	require.NoError(t, nilMetrics.Track("x").End(nil))
}

func TestMetricNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Track("ledger:cleanup_sold").End(nil))
	m.AddArchived(1)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.ElementsMatch(t, []string{
		"stocksavvy_jobs_total",
		"stocksavvy_job_duration_seconds",
		"stocksavvy_job_last_success_timestamp_seconds",
		"stocksavvy_products_archived_total",
	}, names, "failures_total has no samples until a run fails")
}

func TestDefaultMetricsAreShared(t *testing.T) {
	require.Same(t, NewMetrics(nil), NewMetrics(nil))
}
