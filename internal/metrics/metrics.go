// Package metrics exposes Prometheus instrumentation for audits and checks.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "infraaudit"

	StatusLabel string = "status"
	CheckLabel  string = "check"
)

// Metrics holds the collectors registered on a private registry. All methods
// are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	auditsTotal   *prometheus.CounterVec
	auditDuration prometheus.Histogram
	checkResults  *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	auditsStored  prometheus.Gauge
}

// New creates a registry with process and Go runtime collectors plus the
// audit collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		auditsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audits_total",
				Help:      "Total audits run, partitioned by final status.",
			},
			[]string{StatusLabel},
		),
		auditDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "audit_duration_seconds",
				Help:      "Wall time of an audit from start to saved record.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		checkResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "check_results_total",
				Help:      "Total check results, partitioned by check and status.",
			},
			[]string{CheckLabel, StatusLabel},
		),
		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "check_duration_seconds",
				Help:      "Wall time of a single check run.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{CheckLabel},
		),
		auditsStored: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "audits_stored",
				Help:      "Number of audit records held in memory.",
			},
		),
	}
}

// ObserveAudit records a finished audit.
func (m *Metrics) ObserveAudit(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.auditsTotal.WithLabelValues(status).Inc()
	m.auditDuration.Observe(d.Seconds())
}

// ObserveCheck records the duration of one check run.
func (m *Metrics) ObserveCheck(check string, d time.Duration) {
	if m == nil {
		return
	}
	m.checkDuration.WithLabelValues(check).Observe(d.Seconds())
}

// IncCheckResult counts one result emitted by check.
func (m *Metrics) IncCheckResult(check, status string) {
	if m == nil {
		return
	}
	m.checkResults.WithLabelValues(check, status).Inc()
}

// SetStored sets the stored-audits gauge.
func (m *Metrics) SetStored(n int) {
	if m == nil {
		return
	}
	m.auditsStored.Set(float64(n))
}

// Registry returns the underlying registry, or nil for a nil *Metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
