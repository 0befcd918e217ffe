package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	analytichttp "github.com/stocksavvy/stocksavvy/internal/analytics/http"
	"github.com/stocksavvy/stocksavvy/internal/auth"
	"github.com/stocksavvy/stocksavvy/internal/inventory"
	"github.com/stocksavvy/stocksavvy/internal/observability"
	"github.com/stocksavvy/stocksavvy/internal/platform/httpx"
	"github.com/stocksavvy/stocksavvy/internal/rbac"
	"github.com/stocksavvy/stocksavvy/internal/shared"
	"github.com/stocksavvy/stocksavvy/internal/users"
	"github.com/stocksavvy/stocksavvy/jobs"
)

// Pinger is a dependency probed by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	AuthHandler        *auth.Handler
	InventoryHandler   *inventory.Handler
	UsersHandler       *users.Handler
	AnalyticsHandler   *analytichttp.Handler
	JobHandler         *jobs.Handler
	PermissionsHandler *rbac.PermissionsHandler
	Metrics            *observability.Metrics
	HealthChecks       map[string]Pinger
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthHandler(params.Logger, params.HealthChecks))

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	r.Route("/api", func(r chi.Router) {
		if params.InventoryHandler != nil {
			r.Route("/products", params.InventoryHandler.MountRoutes)
			r.Route("/history", params.InventoryHandler.MountHistoryRoutes)
		}
		if params.AnalyticsHandler != nil {
			r.Route("/dashboard", params.AnalyticsHandler.MountDashboardRoutes)
			r.Route("/analytics", params.AnalyticsHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

// healthHandler pings every dependency concurrently and reports each status.
func healthHandler(logger *slog.Logger, checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		results := make(map[string]string, len(checks))
		errs := make([]error, len(checks))
		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}

		var g errgroup.Group
		for i, name := range names {
			pinger := checks[name]
			g.Go(func() error {
				errs[i] = pinger.Ping(ctx)
				return nil
			})
		}
		_ = g.Wait()

		status := http.StatusOK
		for i, name := range names {
			if errs[i] != nil {
				status = http.StatusServiceUnavailable
				results[name] = "down"
				if logger != nil {
					logger.Warn("health check failed", slog.String("dependency", name), slog.Any("error", errs[i]))
				}
				continue
			}
			results[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		httpx.JSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}
