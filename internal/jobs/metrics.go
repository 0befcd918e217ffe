// Package jobmetrics records Prometheus metrics for background job runs.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	archived    prometheus.Counter
}

var defaultMetrics = sync.OnceValue(func() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
})

// NewMetrics registers the job collectors on reg. A nil reg shares a single
// set registered on the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return defaultMetrics()
	}
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stocksavvy",
			Name:      "jobs_total",
			Help:      "Job executions by job name and status.",
		}, []string{"job", "status"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stocksavvy",
			Subsystem: "jobs",
			Name:      "failures_total",
			Help:      "Failed job executions.",
		}, []string{"job"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stocksavvy",
			Subsystem: "job",
			Name:      "duration_seconds",
			Help:      "Duration of job executions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"job"}),
		lastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "stocksavvy",
			Subsystem: "job",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per job.",
		}, []string{"job"}),
		archived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stocksavvy",
			Subsystem: "products",
			Name:      "archived_total",
			Help:      "Sold products archived by the retention sweep.",
		}),
	}
}

// Run is a single in-flight job execution.
type Run struct {
	m     *Metrics
	job   string
	start time.Time
}

// Track starts timing a run of job.
func (m *Metrics) Track(job string) Run {
	return Run{m: m, job: job, start: time.Now()}
}

// End records the outcome of the run and returns err unchanged.
func (r Run) End(err error) error {
	if r.m == nil || r.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		r.m.failures.WithLabelValues(r.job).Inc()
	} else {
		r.m.lastSuccess.WithLabelValues(r.job).SetToCurrentTime()
	}
	r.m.runs.WithLabelValues(r.job, status).Inc()
	r.m.duration.WithLabelValues(r.job).Observe(time.Since(r.start).Seconds())
	return err
}

// AddArchived counts products archived by the cleanup sweep.
func (m *Metrics) AddArchived(count int) {
	if m != nil && count > 0 {
		m.archived.Add(float64(count))
	}
}
