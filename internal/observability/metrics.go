// Package observability exposes the API process's Prometheus registry.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StockCounter reports how many ledger products sit in each status.
type StockCounter func() map[string]int

// Metrics owns a private registry with HTTP and ledger collectors.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics initialises the registry with the HTTP collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stocksavvy",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stocksavvy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration per route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
		}, []string{"route"}),
	}
	m.registry.MustRegister(m.requests, m.latency)
	return m
}

// TrackLedger exports stocksavvy_ledger_products{status} from count, which
// is called on every scrape.
func (m *Metrics) TrackLedger(count StockCounter) error {
	if m == nil || count == nil {
		return nil
	}
	return m.registry.Register(&ledgerCollector{count: count})
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records a request count and latency sample per chi route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer lets the in-process cleanup job publish into the same registry.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

var ledgerProductsDesc = prometheus.NewDesc(
	"stocksavvy_ledger_products",
	"Products held in the in-memory ledger by status.",
	[]string{"status"}, nil,
)

type ledgerCollector struct {
	count StockCounter
}

func (c *ledgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- ledgerProductsDesc
}

func (c *ledgerCollector) Collect(ch chan<- prometheus.Metric) {
	for status, n := range c.count() {
		ch <- prometheus.MustNewConstMetric(ledgerProductsDesc, prometheus.GaugeValue, float64(n), status)
	}
}
