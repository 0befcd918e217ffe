package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stocksavvy/stocksavvy/internal/analytics"
	"github.com/stocksavvy/stocksavvy/internal/inventory"
	jobmetrics "github.com/stocksavvy/stocksavvy/internal/jobs"
	"github.com/stocksavvy/stocksavvy/internal/rbac"
	"github.com/stocksavvy/stocksavvy/internal/shared"
	"github.com/stocksavvy/stocksavvy/internal/store/memory"
)

var admin = rbac.Principal{ID: "admin-1", Email: "admin@stocksavvy.com", Role: rbac.RoleAdmin}

func TestCleanupJobArchivesAndAnnounces(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	today := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	st := memory.New()
	ledger := inventory.NewService(st, nil, inventory.ServiceConfig{}, inventory.WithClock(func() time.Time { return today }))
	require.NoError(t, ledger.Load(ctx))
	p, err := ledger.AddProduct(ctx, admin, inventory.NewProduct{ProductID: "old", Name: "Old", Category: "Phones", PurchaseDate: "2024-01-01", Stock: 1})
	require.NoError(t, err)
	_, err = ledger.MarkAsSold(ctx, admin, p.ID, inventory.Sale{SaleDate: "2024-01-15", Quantity: 1})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	listener := analytics.NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	var mu sync.Mutex
	reloads := 0
	listener.OnBump(func(string) {
		mu.Lock()
		defer mu.Unlock()
		reloads++
	})
	require.NoError(t, listener.ListenForInvalidation(ctx, analytics.ReloadChannel))

	announcer := analytics.NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	job := NewCleanupJob(ledger, announcer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewCleanupSoldProductsTask(CleanupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	got, ok := ledger.GetProductByID(p.ID)
	require.True(t, ok)
	require.True(t, got.Archived)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloads == 1
	}, time.Second, 10*time.Millisecond)
}

type stubLedger struct {
	loadErr  error
	sweepErr error
	count    int
}

func (s *stubLedger) Load(context.Context) error { return s.loadErr }

func (s *stubLedger) CleanupOldSoldProducts(context.Context) (int, error) {
	return s.count, s.sweepErr
}

type countingAnnouncer struct{ calls int }

func (c *countingAnnouncer) AnnounceReload(context.Context) error {
	c.calls++
	return nil
}

func TestCleanupJobSkipsAnnounceWhenNothingArchived(t *testing.T) {
	announcer := &countingAnnouncer{}
	job := NewCleanupJob(&stubLedger{}, announcer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewCleanupSoldProductsTask(CleanupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Zero(t, announcer.calls)
}

func TestCleanupJobReloadFailure(t *testing.T) {
	loadErr := errors.New("store down")
	job := NewCleanupJob(&stubLedger{loadErr: loadErr}, nil, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewCleanupSoldProductsTask(CleanupPayload{})
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, loadErr)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestCleanupJobFailureIsNotRetried(t *testing.T) {
	sweepErr := errors.New("archive refused")
	reg := prometheus.NewRegistry()
	job := NewCleanupJob(&stubLedger{sweepErr: sweepErr}, nil, nil, jobmetrics.NewMetrics(reg))
	task, err := NewCleanupSoldProductsTask(CleanupPayload{})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, sweepErr)
	require.ErrorIs(t, err, asynq.SkipRetry)

	families, err := reg.Gather()
	require.NoError(t, err)
	var failures float64
	for _, fam := range families {
		if fam.GetName() == "stocksavvy_jobs_failures_total" {
			for _, m := range fam.GetMetric() {
				failures += m.GetCounter().GetValue()
			}
		}
	}
	require.Equal(t, 1.0, failures)
}

func TestCleanupJobRejectsBadPayload(t *testing.T) {
	job := NewCleanupJob(&stubLedger{}, nil, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskCleanupSoldProducts, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type stubEnqueuer struct {
	last CleanupPayload
	err  error
}

func (s *stubEnqueuer) EnqueueCleanup(_ context.Context, payload CleanupPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.last = payload
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

type roleDirectory map[string]rbac.Role

func (d roleDirectory) RoleOf(_ context.Context, userID string) (rbac.Role, error) {
	role, ok := d[userID]
	if !ok {
		return "", rbac.ErrNotFound
	}
	return role, nil
}

func TestHandlerRoutes(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	middleware := rbac.Middleware{Service: rbac.NewService(roleDirectory{"1": rbac.RoleAdmin, "2": rbac.RoleWorker})}
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, enqueuer, middleware, nil).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rr.Body.String())

	post := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/jobs/cleanup", nil)
		sess := &shared.Session{}
		sess.SetUser(userID)
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}
	require.Equal(t, http.StatusForbidden, post("2").Code)

	rr = post("1")
	require.Equal(t, http.StatusAccepted, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "task-1", body["task_id"])
	require.Equal(t, "manual", enqueuer.last.Trigger)
	require.Equal(t, "1", enqueuer.last.RequestedBy)
}

func TestHandlerReportsDuplicateCleanup(t *testing.T) {
	enqueuer := &stubEnqueuer{err: fmt.Errorf("enqueue: %w", asynq.ErrDuplicateTask)}
	middleware := rbac.Middleware{Service: rbac.NewService(roleDirectory{"1": rbac.RoleAdmin})}
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, enqueuer, middleware, nil).MountRoutes)

	req := httptest.NewRequest(http.MethodPost, "/jobs/cleanup", nil)
	sess := &shared.Session{}
	sess.SetUser("1")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
}
