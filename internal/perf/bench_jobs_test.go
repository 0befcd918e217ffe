package perf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/stocksavvy/stocksavvy/internal/inventory"
	jobmetrics "github.com/stocksavvy/stocksavvy/internal/jobs"
	"github.com/stocksavvy/stocksavvy/internal/store/memory"
	"github.com/stocksavvy/stocksavvy/jobs"
)

type offlineLedger struct{}

func (offlineLedger) Load(context.Context) error { return errors.New("store offline") }

func (offlineLedger) CleanupOldSoldProducts(context.Context) (int, error) { return 0, nil }

func soldLedger(t *testing.T, n int) *inventory.Service {
	t.Helper()
	ctx := context.Background()
	today := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	ledger := inventory.NewService(memory.New(), nil, inventory.ServiceConfig{SoldRetention: 30 * 24 * time.Hour},
		inventory.WithClock(func() time.Time { return today }))
	require.NoError(t, ledger.Load(ctx))

	for range n {
		p, err := ledger.AddProduct(ctx, admin, inventory.NewProduct{ProductID: "SKU", Name: "Old pair", Category: "Sneakers", PurchaseDate: "2024-01-01", Stock: 1})
		require.NoError(t, err)
		_, err = ledger.MarkAsSold(ctx, admin, p.ID, inventory.Sale{SaleDate: "2024-02-01", Quantity: 1})
		require.NoError(t, err)
	}
	return ledger
}

func TestCleanupJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	ctx := context.Background()

	task, err := jobs.NewCleanupSoldProductsTask(jobs.CleanupPayload{})
	require.NoError(t, err)

	healthy := jobs.NewCleanupJob(soldLedger(t, 20), nil, nil, metrics)
	for i := range 30 {
		require.NoError(t, healthy.Handle(ctx, task), "run %d", i)
	}

	offline := jobs.NewCleanupJob(offlineLedger{}, nil, nil, metrics)
	for range 2 {
		require.Error(t, offline.Handle(ctx, task))
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	job := jobs.TaskCleanupSoldProducts
	success := sample(t, families, "stocksavvy_jobs_total", "job", job, "status", "success").GetCounter().GetValue()
	failure := sample(t, families, "stocksavvy_jobs_total", "job", job, "status", "failure").GetCounter().GetValue()
	require.Equal(t, 30.0, success)
	require.Equal(t, 2.0, failure)
	require.GreaterOrEqual(t, success/(success+failure), 0.9)

	archived := sample(t, families, "stocksavvy_products_archived_total").GetCounter().GetValue()
	require.GreaterOrEqual(t, archived, 20.0)

	hist := sample(t, families, "stocksavvy_job_duration_seconds", "job", job).GetHistogram()
	require.NotZero(t, hist.GetSampleCount())
	require.Less(t, hist.GetSampleSum()/float64(hist.GetSampleCount()), 1.0, "mean cleanup duration")
}

// sample finds the metric in family name whose labels include every
// name/value pair in pairs.
func sample(t *testing.T, families []*dto.MetricFamily, name string, pairs ...string) *dto.Metric {
	t.Helper()
	require.Zero(t, len(pairs)%2, "label pairs")
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if matchLabels(m, pairs) {
				return m
			}
		}
	}
	require.FailNow(t, "metric not found", "%s %v", name, pairs)
	return nil
}

func matchLabels(m *dto.Metric, pairs []string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for i := 0; i < len(pairs); i += 2 {
		if v, ok := got[pairs[i]]; !ok || v != pairs[i+1] {
			return false
		}
	}
	return true
}
