package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stocksavvy/stocksavvy/internal/inventory"
)

type mutableSource struct {
	mu       sync.Mutex
	products []inventory.Product
	history  []inventory.HistoryEntry
}

func (s *mutableSource) Products() []inventory.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inventory.Product(nil), s.products...)
}

func (s *mutableSource) History() []inventory.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inventory.HistoryEntry(nil), s.history...)
}

func (s *mutableSource) add(p inventory.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, p)
}

func money(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func requireMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s got %s", want, got)
}

func fixture() ([]inventory.Product, []inventory.HistoryEntry) {
	two := 2
	products := []inventory.Product{
		{ID: "a", Name: "iPhone 13", PurchaseDate: "2024-01-10", Price: money("500"), Stock: 2, Status: inventory.StatusInStock},
		{ID: "b", Name: "Pixel 7", PurchaseDate: "2024-01-20", Price: money("400"), Status: inventory.StatusSold,
			SaleDate: "2024-02-02", SaleQuantity: &two, SalePrice: money("450")},
		{ID: "c", Name: "Case", PurchaseDate: "2023-11-01", Status: inventory.StatusSold, SaleDate: "2023-12-05", SalePrice: money("30")},
	}
	history := []inventory.HistoryEntry{
		{ID: "h1", ProductID: "a", Change: inventory.ChangeProductAdded, Price: money("500"), Timestamp: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{ID: "h2", ProductID: "gone", Change: inventory.ChangeProductAdded, Price: money("100"), Timestamp: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		{ID: "h3", ProductID: "a", Change: inventory.ChangeUpdated, Timestamp: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)},
	}
	return products, history
}

func TestBuildSummary(t *testing.T) {
	products, history := fixture()
	s := BuildSummary(products, history)

	requireMoney(t, "1000", s.TotalValue)
	requireMoney(t, "1000", s.CurrentStockValue)
	requireMoney(t, "1800", s.TotalPurchaseCost)
	requireMoney(t, "930", s.TotalSales)
	require.Equal(t, 4, s.TotalPurchased)
	require.Equal(t, 3, s.TotalSold)
	requireMoney(t, "450", s.AveragePurchasePrice)
	require.NotNil(t, s.ProfitMargin)
	requireMoney(t, "-48.3", *s.ProfitMargin)

	require.Len(t, s.MonthlySales, 2)
	require.Equal(t, "Dec 2023", s.MonthlySales[0].Month)
	require.Equal(t, "Feb 2024", s.MonthlySales[1].Month)
	requireMoney(t, "900", s.MonthlySales[1].Amount)
	require.Len(t, s.MonthlyPurchases, 1)
	requireMoney(t, "1000", s.MonthlyPurchases[0].Amount)

	require.Len(t, s.PurchaseHistory, 2)
	require.Equal(t, "iPhone 13", s.PurchaseHistory[0].ProductName)
	require.Equal(t, UnknownProduct, s.PurchaseHistory[1].ProductName)
}

func TestBuildSummaryEmpty(t *testing.T) {
	s := BuildSummary(nil, nil)
	require.Nil(t, s.ProfitMargin)
	require.True(t, s.AveragePurchasePrice.IsZero())
	require.Empty(t, s.MonthlySales)
}

func TestBuildDashboard(t *testing.T) {
	products, _ := fixture()
	for i := 0; i < 4; i++ {
		products = append(products, inventory.Product{ID: "x", PurchaseDate: "2022-01-01", Stock: 10, Status: inventory.StatusInStock})
	}
	d := BuildDashboard(products, DefaultLowStockThreshold)
	require.Equal(t, 7, d.TotalProducts)
	require.Equal(t, 5, d.InStock)
	require.Equal(t, 2, d.Sold)
	require.Equal(t, 1, d.LowStock)
	require.Len(t, d.Recent, RecentProductsLimit)
	require.Equal(t, "b", d.Recent[0].ID)
	require.Equal(t, "a", d.Recent[1].ID)
}

func TestSortMonths(t *testing.T) {
	labels := []string{"Mar 2024", "bogus", "Dec 2023", "Jan 2024"}
	SortMonths(labels)
	require.Equal(t, []string{"Dec 2023", "Jan 2024", "Mar 2024", "bogus"}, labels)
}

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute), mr
}

func TestSummaryCachedUntilInventoryChanges(t *testing.T) {
	ctx := context.Background()
	products, history := fixture()
	source := &mutableSource{products: products, history: history}
	cache, _ := newCache(t)
	svc := NewService(source, cache, nil, DefaultLowStockThreshold)

	first, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, first.TotalProducts)

	source.add(inventory.Product{ID: "d", Stock: 1, Status: inventory.StatusInStock})
	cached, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, cached.TotalProducts)

	require.NoError(t, cache.HandleInventoryChanged(ctx, inventory.ChangedEvent{Kind: inventory.ChangeKindAdded}))
	fresh, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, fresh.TotalProducts)
}

func TestCacheOutageFallsBackToDirectComputation(t *testing.T) {
	products, history := fixture()
	cache, mr := newCache(t)
	mr.Close()
	svc := NewService(&mutableSource{products: products, history: history}, cache, nil, DefaultLowStockThreshold)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	requireMoney(t, "930", summary.TotalSales)
}

func TestListenForInvalidationReceivesReloads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache, mr := newCache(t)

	var mu sync.Mutex
	var got []string
	cache.OnBump(func(version string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, version)
	})
	require.NoError(t, cache.ListenForInvalidation(ctx, ReloadChannel))

	announcer := NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	require.NoError(t, announcer.AnnounceReload(ctx))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "1"
	}, time.Second, 10*time.Millisecond)
}

func TestNilCacheIsPassThrough(t *testing.T) {
	var cache *Cache
	require.NoError(t, cache.Bump(context.Background()))
	require.NoError(t, cache.AnnounceReload(context.Background()))
	ver, err := cache.Version(context.Background())
	require.NoError(t, err)
	require.Zero(t, ver)
}
