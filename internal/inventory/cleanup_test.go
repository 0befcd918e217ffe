package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stocksavvy/stocksavvy/internal/store"
	"github.com/stocksavvy/stocksavvy/internal/store/memory"
)

func seedSold(t *testing.T, svc *Service, productID, saleDate string) Product {
	t.Helper()
	ctx := context.Background()
	p, err := svc.AddProduct(ctx, admin, NewProduct{ProductID: productID, Name: productID, Category: "Phones", PurchaseDate: "2024-01-01", Stock: 1})
	require.NoError(t, err)
	sold, err := svc.MarkAsSold(ctx, worker, p.ID, Sale{SaleDate: saleDate, Quantity: 1})
	require.NoError(t, err)
	return sold
}

func TestCleanupArchivesOldSales(t *testing.T) {
	today := time.Date(2024, 3, 31, 9, 0, 0, 0, time.UTC)
	st := memory.New()
	handler := &recordingHandler{}
	svc := newTestService(t, st, ServiceConfig{}, WithClock(func() time.Time { return today }), WithChangeHandler(handler))

	old := seedSold(t, svc, "old", today.AddDate(0, 0, -31).Format(DateLayout))
	boundary := seedSold(t, svc, "boundary", today.AddDate(0, 0, -30).Format(DateLayout))
	recent := seedSold(t, svc, "recent", today.AddDate(0, 0, -29).Format(DateLayout))
	inStock := addIPhone(t, svc)

	count, err := svc.CleanupOldSoldProducts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, count)

	for id, want := range map[string]bool{old.ID: true, boundary.ID: true, recent.ID: false, inStock.ID: false} {
		p, ok := svc.GetProductByID(id)
		require.True(t, ok)
		require.Equal(t, want, p.Archived, p.ProductID)

		doc, err := st.Get(context.Background(), store.CollectionProducts, id)
		require.NoError(t, err)
		archived, _ := doc[fieldArchived].(bool)
		require.Equal(t, want, archived, p.ProductID)
	}
	require.Len(t, svc.Products(), 4)

	last := handler.events[len(handler.events)-1]
	require.Equal(t, ChangeKindCleanup, last.Kind)
	require.ElementsMatch(t, []string{old.ID, boundary.ID}, last.ProductIDs)
}

func TestCleanupNothingToDo(t *testing.T) {
	svc := newTestService(t, nil, ServiceConfig{})
	addIPhone(t, svc)

	count, err := svc.CleanupOldSoldProducts(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestCleanupCustomRetention(t *testing.T) {
	today := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, nil, ServiceConfig{SoldRetention: 7 * 24 * time.Hour}, WithClock(func() time.Time { return today }))
	p := seedSold(t, svc, "week", "2024-03-20")

	count, err := svc.CleanupOldSoldProducts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
	got, _ := svc.GetProductByID(p.ID)
	require.True(t, got.Archived)
}

func TestCleanupFailureIsSwallowedBySweep(t *testing.T) {
	today := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	st := &failingStore{Store: memory.New()}
	svc := newTestService(t, st, ServiceConfig{}, WithClock(func() time.Time { return today }))
	p := seedSold(t, svc, "old", "2024-01-01")

	st.failUpdate = true
	_, err := svc.CleanupOldSoldProducts(context.Background())
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)

	require.NotPanics(t, func() { svc.sweep(context.Background()) })
	got, _ := svc.GetProductByID(p.ID)
	require.False(t, got.Archived)
}

func TestRunCleanupStopsOnCancel(t *testing.T) {
	today := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, nil, ServiceConfig{}, WithClock(func() time.Time { return today }))
	p := seedSold(t, svc, "old", "2024-01-01")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunCleanup(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, _ := svc.GetProductByID(p.ID)
		return got.Archived
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}
