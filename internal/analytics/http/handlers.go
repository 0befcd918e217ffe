package analytichttp

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stocksavvy/stocksavvy/internal/analytics"
	"github.com/stocksavvy/stocksavvy/internal/analytics/export"
	"github.com/stocksavvy/stocksavvy/internal/analytics/svg"
	"github.com/stocksavvy/stocksavvy/internal/platform/httpx"
	"github.com/stocksavvy/stocksavvy/internal/rbac"
)

const requestTimeout = 2 * time.Second

// AnalyticsService defines the aggregate contract used by the handler.
type AnalyticsService interface {
	Dashboard(ctx context.Context) (analytics.Dashboard, error)
	Summary(ctx context.Context) (analytics.Summary, error)
}

// Handler serves dashboard counters, the analytics summary and its exports.
type Handler struct {
	logger  *slog.Logger
	service AnalyticsService
	rbac    rbac.Middleware
	csvPool sync.Pool
	now     func() time.Time
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:  logger,
		service: service,
		rbac:    rbac,
		now:     time.Now,
	}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	dashboard, err := h.service.Dashboard(ctx)
	if err != nil {
		h.handleServerError(w, "load dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dashboard)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summary, err := h.service.Summary(ctx)
	if err != nil {
		h.handleServerError(w, "load summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

// handleOverview returns the dashboard and the summary in one payload.
func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var (
		dashboard analytics.Dashboard
		summary   analytics.Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dashboard, err = h.service.Dashboard(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = h.service.Summary(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.handleServerError(w, "load overview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"dashboard": dashboard, "summary": summary})
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summary, err := h.service.Summary(ctx)
	if err != nil {
		h.handleServerError(w, "load summary", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := export.WriteSummaryCSV(buf, summary); err != nil {
		h.handleServerError(w, "export csv", err)
		return
	}

	filename := "stocksavvy-analytics-" + h.now().UTC().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleMonthlyChart(w http.ResponseWriter, r *http.Request) {
	h.renderChart(w, r, "monthly chart", svg.MonthlyChart)
}

func (h *Handler) handlePriceChart(w http.ResponseWriter, r *http.Request) {
	h.renderChart(w, r, "price chart", svg.PriceChart)
}

func (h *Handler) renderChart(w http.ResponseWriter, r *http.Request, name string, render func(analytics.Summary) (template.HTML, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summary, err := h.service.Summary(ctx)
	if err != nil {
		h.handleServerError(w, "load summary", err)
		return
	}
	chart, err := render(summary)
	if err != nil {
		h.handleServerError(w, "render "+name, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(chart))
}

func (h *Handler) handleServerError(w http.ResponseWriter, context string, err error) {
	h.logger.Error("analytics handler error", slog.String("context", context), slog.Any("error", err))
	httpx.RespondError(w, err)
}
