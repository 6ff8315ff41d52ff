// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "research_output"

// Metrics holds the collectors, registered on their own registry
type Metrics struct {
	registry *prometheus.Registry

	Verifications       *prometheus.CounterVec
	Unverifications     *prometheus.CounterVec
	DuplicateEdges      *prometheus.CounterVec
	DuplicateCalcTime   *prometheus.HistogramVec
	BulkItems           *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers every collector
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Verification attempts by outcome (ok or error kind).",
		}, []string{"outcome"}),
		Unverifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unverifications_total",
			Help:      "Unverification attempts by outcome (ok or error kind).",
		}, []string{"outcome"}),
		DuplicateEdges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_edges_written_total",
			Help:      "Duplicate edges written by calculation mode.",
		}, []string{"mode"}),
		DuplicateCalcTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duplicate_calculation_seconds",
			Help:      "Duration of duplicate calculations by mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		BulkItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_items_total",
			Help:      "Items processed by bulk actions, by action and outcome.",
		}, []string{"action", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Verifications,
		m.Unverifications,
		m.DuplicateEdges,
		m.DuplicateCalcTime,
		m.BulkItems,
		m.HTTPRequests,
		m.HTTPRequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
