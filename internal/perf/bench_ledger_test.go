package perf

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stocksavvy/stocksavvy/internal/analytics"
	"github.com/stocksavvy/stocksavvy/internal/inventory"
	"github.com/stocksavvy/stocksavvy/internal/rbac"
	"github.com/stocksavvy/stocksavvy/internal/store/memory"
)

var admin = rbac.Principal{ID: "admin-1", Email: "admin@stocksavvy.com", Role: rbac.RoleAdmin}

// seededLedger adds n products and sells every other one.
func seededLedger(tb testing.TB, n int) *inventory.Service {
	tb.Helper()
	ctx := context.Background()
	ledger := inventory.NewService(memory.New(), nil, inventory.ServiceConfig{})
	require.NoError(tb, ledger.Load(ctx))
	for i := 0; i < n; i++ {
		price := decimal.NewFromInt(int64(100 + i%50))
		p, err := ledger.AddProduct(ctx, admin, inventory.NewProduct{
			ProductID:    fmt.Sprintf("SKU-%04d", i),
			Name:         fmt.Sprintf("Product %d", i),
			Category:     "Sneakers",
			PurchaseDate: time.Date(2024, time.Month(1+i%12), 1+i%28, 0, 0, 0, 0, time.UTC).Format(inventory.DateLayout),
			Stock:        2,
			Price:        &price,
		})
		require.NoError(tb, err)
		if i%2 == 0 {
			sale := price.Add(decimal.NewFromInt(40))
			_, err := ledger.MarkAsSold(ctx, admin, p.ID, inventory.Sale{SaleDate: p.PurchaseDate, Quantity: 2, SalePrice: &sale})
			require.NoError(tb, err)
		}
	}
	return ledger
}

func TestSummaryLatencyTargets(t *testing.T) {
	ledger := seededLedger(t, 1000)
	mr := miniredis.RunT(t)
	cache := analytics.NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	service := analytics.NewService(ledger, cache, nil, 2)
	ctx := context.Background()

	cold := make([]time.Duration, 0, 10)
	for i := 0; i < 10; i++ {
		start := time.Now()
		_ = analytics.BuildSummary(ledger.Products(), ledger.History())
		cold = append(cold, time.Since(start))
	}

	_, err := service.Summary(ctx)
	require.NoError(t, err)
	cached := make([]time.Duration, 0, 10)
	for i := 0; i < 10; i++ {
		start := time.Now()
		_, err := service.Summary(ctx)
		require.NoError(t, err)
		cached = append(cached, time.Since(start))
	}

	require.Less(t, percentile95(cold), 2*time.Second, "cold summary regression")
	require.Less(t, percentile95(cached), 500*time.Millisecond, "cached summary regression")
}

func BenchmarkBuildSummary(b *testing.B) {
	ledger := seededLedger(b, 500)
	products, history := ledger.Products(), ledger.History()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = analytics.BuildSummary(products, history)
	}
}

func BenchmarkAddProduct(b *testing.B) {
	ctx := context.Background()
	ledger := inventory.NewService(memory.New(), nil, inventory.ServiceConfig{})
	require.NoError(b, ledger.Load(ctx))
	price := decimal.NewFromInt(120)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := ledger.AddProduct(ctx, admin, inventory.NewProduct{
			ProductID:    fmt.Sprintf("SKU-%d", i),
			Name:         "Bench",
			Category:     "Sneakers",
			PurchaseDate: "2024-01-01",
			Stock:        1,
			Price:        &price,
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
