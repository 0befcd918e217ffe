package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/stocksavvy/stocksavvy/internal/analytics"
	analytichttp "github.com/stocksavvy/stocksavvy/internal/analytics/http"
	"github.com/stocksavvy/stocksavvy/internal/auth"
	"github.com/stocksavvy/stocksavvy/internal/inventory"
	"github.com/stocksavvy/stocksavvy/internal/observability"
	"github.com/stocksavvy/stocksavvy/internal/rbac"
	"github.com/stocksavvy/stocksavvy/internal/shared"
	"github.com/stocksavvy/stocksavvy/internal/store"
	"github.com/stocksavvy/stocksavvy/internal/users"
	"github.com/stocksavvy/stocksavvy/jobs"
)

// SessionCookieName names the session cookie.
const SessionCookieName = "stocksavvy_session"

// Deps are the external resources the API process is assembled from.
type Deps struct {
	Config    *Config
	Logger    *slog.Logger
	Store     store.Store
	Redis     *redis.Client
	Metrics   *observability.Metrics
	Inspector *asynq.Inspector
	Jobs      jobs.Enqueuer
}

// API is the assembled HTTP service.
type API struct {
	Handler http.Handler
	Ledger  *inventory.Service
	Cache   *analytics.Cache
	Auth    *auth.Service
}

// BuildAPI seeds users, loads the ledger and wires every handler.
func BuildAPI(ctx context.Context, deps Deps) (*API, error) {
	cfg, logger := deps.Config, deps.Logger
	if cfg == nil || deps.Store == nil || deps.Redis == nil {
		return nil, errors.New("app: config, store and redis are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sessionManager := shared.NewSessionManager(deps.Redis, SessionCookieName, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	if err := auth.SeedUsers(ctx, deps.Store, SeedUsers(cfg), logger); err != nil {
		return nil, fmt.Errorf("app: seed users: %w", err)
	}
	authService := auth.NewService(auth.NewRepository(deps.Store), logger)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	rbacService := rbac.NewService(authService)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	analyticsCache := analytics.NewCache(deps.Redis, cfg.CacheTTL)
	ledger := inventory.NewService(deps.Store, logger, inventory.ServiceConfig{
		UniqueProductIDs: cfg.UniqueProductIDs,
		SoldRetention:    cfg.CleanupRetention,
	}, inventory.WithChangeHandler(analyticsCache))
	if err := ledger.Load(ctx); err != nil {
		return nil, fmt.Errorf("app: load ledger: %w", err)
	}

	if err := deps.Metrics.TrackLedger(func() map[string]int {
		counts := map[string]int{}
		for _, p := range ledger.Products() {
			counts[string(p.Status)]++
		}
		return counts
	}); err != nil {
		return nil, fmt.Errorf("app: ledger metrics: %w", err)
	}

	analyticsService := analytics.NewService(ledger, analyticsCache, logger, cfg.LowStockThreshold)
	usersService := users.NewService(users.NewRepository(deps.Store), logger)

	router := NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthHandler:        authHandler,
		InventoryHandler:   inventory.NewHandler(logger, ledger, authService, rbacMiddleware),
		UsersHandler:       users.NewHandler(logger, usersService, authService, rbacMiddleware),
		AnalyticsHandler:   analytichttp.NewHandler(logger, analyticsService, rbacMiddleware),
		JobHandler:         jobs.NewHandler(deps.Inspector, deps.Jobs, rbacMiddleware, logger),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware),
		Metrics:            deps.Metrics,
		HealthChecks: map[string]Pinger{
			"store": deps.Store,
			"redis": sessionManager,
		},
	})

	return &API{Handler: router, Ledger: ledger, Cache: analyticsCache, Auth: authService}, nil
}

// SeedUsers lists the accounts configured through AUTH_SEED_* variables.
func SeedUsers(cfg *Config) []auth.SeedUser {
	var seeds []auth.SeedUser
	if cfg.SeedAdminEmail != "" {
		seeds = append(seeds, auth.SeedUser{Name: cfg.SeedAdminName, Email: cfg.SeedAdminEmail, Password: cfg.SeedAdminPassword, Role: rbac.RoleAdmin})
	}
	if cfg.SeedWorkerEmail != "" {
		seeds = append(seeds, auth.SeedUser{Name: cfg.SeedWorkerName, Email: cfg.SeedWorkerEmail, Password: cfg.SeedWorkerPassword, Role: rbac.RoleWorker})
	}
	return seeds
}
