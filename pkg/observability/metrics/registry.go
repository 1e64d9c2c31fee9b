// Package metrics exposes Prometheus metrics for query materialization.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation names recorded by QueryMetrics.
const (
	OperationFind  = "find"
	OperationCount = "count"
)

// Registry owns a Prometheus registry with the query collectors and the Go
// runtime collector registered.
type Registry struct {
	registry *prometheus.Registry
	queries  *QueryMetrics
}

// NewRegistry creates a registry with default collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	queries := NewQueryMetrics()
	reg.MustRegister(queries.Collectors()...)
	reg.MustRegister(collectors.NewGoCollector())
	return &Registry{registry: reg, queries: queries}
}

// Queries returns the query collectors registered with this registry.
func (r *Registry) Queries() *QueryMetrics { return r.queries }

// Register adds a custom collector.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.registry.Register(c)
}

// Gatherer exposes the underlying registry for scraping or tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry to path in the text exposition format,
// as read by the node exporter textfile collector. The write is atomic.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// QueryMetrics counts calls into the fetch collaborator. A nil *QueryMetrics
// records nothing.
type QueryMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	records    *prometheus.HistogramVec
}

// NewQueryMetrics creates unregistered query collectors.
func NewQueryMetrics() *QueryMetrics {
	return &QueryMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "querykit_materializations_total",
			Help: "Calls issued to the record store, by model, operation and outcome.",
		}, []string{"model", "operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "querykit_materialization_duration_seconds",
			Help:    "Latency of calls issued to the record store.",
			Buckets: prometheus.DefBuckets,
		}, []string{"model", "operation"}),
		records: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "querykit_materialized_records",
			Help:    "Records returned per find call.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"model"}),
	}
}

// Collectors lists the collectors for registration.
func (m *QueryMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.operations, m.duration, m.records}
}

// Observe records one store call.
func (m *QueryMetrics) Observe(model, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(model, operation, outcome).Inc()
	m.duration.WithLabelValues(model, operation).Observe(elapsed.Seconds())
}

// ObserveRecords records the size of a materialized result.
func (m *QueryMetrics) ObserveRecords(model string, n int) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(model).Observe(float64(n))
}
