package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/stocksavvy/stocksavvy/internal/platform/httpx"
	"github.com/stocksavvy/stocksavvy/internal/rbac"
	"github.com/stocksavvy/stocksavvy/internal/shared"
)

// csvExportsPerMinute caps CSV downloads per user, or per IP for requests
// without a session user.
const csvExportsPerMinute = 10

// MountDashboardRoutes registers the landing page counters.
func (h *Handler) MountDashboardRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.With(h.rbac.RequireAny(rbac.PermProductsView)).Get("/", h.handleDashboard)
}

// MountRoutes registers analytics endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	exportLimit := httprate.Limit(csvExportsPerMinute, time.Minute,
		httprate.WithKeyFuncs(exportKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "CSV export limit reached, retry in a minute")
		}),
	)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermAnalyticsView))
		r.Get("/", h.handleOverview)
		r.Get("/summary", h.handleSummary)
		r.With(exportLimit).Get("/summary.csv", h.handleCSV)
		r.Get("/charts/monthly.svg", h.handleMonthlyChart)
		r.Get("/charts/prices.svg", h.handlePriceChart)
	})
}

func exportKey(r *http.Request) (string, error) {
	if id := shared.UserIDFromContext(r.Context()); id != "" {
		return "user:" + id, nil
	}
	ip, err := httprate.KeyByIP(r)
	return "ip:" + ip, err
}
