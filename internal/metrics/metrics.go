// Package metrics exposes Prometheus instrumentation for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tonimelisma/schema-api/internal/sync"
)

const namespace = "schema_api"

// Metrics holds every collector. Create one per process with New.
type Metrics struct {
	registry *prometheus.Registry

	syncBatches     *prometheus.CounterVec
	syncOperations  *prometheus.CounterVec
	syncDuration    prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	broadcasts      prometheus.Counter
	broadcastDrops  prometheus.Counter
	subscribers     prometheus.Gauge
	streamedRecords *prometheus.CounterVec
}

// New registers all collectors, plus the Go runtime and process collectors,
// on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		syncBatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_batches_total",
			Help:      "Mutation batches by result.",
		}, []string{"result"}),
		syncOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_operations_total",
			Help:      "Operations returned by committed batches, side effects included.",
		}, []string{"type", "op"}),
		syncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_batch_duration_seconds",
			Help:      "Time to reduce, check and persist a batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		broadcasts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_messages_total",
			Help:      "Messages published to viewer channels.",
		}),
		broadcastDrops: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Messages dropped because a subscriber or the listener queue was full.",
		}),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broadcast_subscribers",
			Help:      "Open websocket subscriptions.",
		}),
		streamedRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streamed_records_total",
			Help:      "Records streamed by read endpoints.",
		}, []string{"type"}),
	}
}

// ObserveBatch implements sync.Recorder.
func (m *Metrics) ObserveBatch(result string, ops []*sync.Operation, elapsed time.Duration) {
	m.syncBatches.WithLabelValues(result).Inc()
	m.syncDuration.Observe(elapsed.Seconds())

	for _, op := range ops {
		typ := op.Type
		if op.Entity != nil {
			typ = op.Entity.Type
		}

		m.syncOperations.WithLabelValues(typ, string(op.Kind)).Inc()
	}
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Streamed counts records written by a read endpoint.
func (m *Metrics) Streamed(entityType string, n int) {
	m.streamedRecords.WithLabelValues(entityType).Add(float64(n))
}

// Published counts broadcast messages.
func (m *Metrics) Published(n int) {
	m.broadcasts.Add(float64(n))
}

// Dropped counts broadcast messages that were not delivered.
func (m *Metrics) Dropped(n int) {
	m.broadcastDrops.Add(float64(n))
}

// SubscriberDelta adjusts the open subscription gauge.
func (m *Metrics) SubscriberDelta(d int) {
	m.subscribers.Add(float64(d))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
