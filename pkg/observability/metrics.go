package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Repository metrics
	RepoOperations *prometheus.CounterVec
	RepoDuration   *prometheus.HistogramVec

	// Query metrics
	QueryDuration *prometheus.HistogramVec

	// Projection metrics
	ProjectionDuration *prometheus.HistogramVec
	SubtreeSize        prometheus.Histogram
	MissingRecords     *prometheus.CounterVec

	// Live sessions
	ActiveSessions  prometheus.Gauge
	EventsPublished *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a new metrics collector with the given namespace.
// Every collector owns its registry so tests can build as many as they like.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RepoOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repository_operations_total",
				Help:      "Total number of repository operations",
			},
			[]string{"operation", "status"},
		),
		RepoDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "repository_operation_duration_seconds",
				Help:      "Repository operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Query handler duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"query", "status"},
		),
		ProjectionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "projection_duration_seconds",
				Help:      "Time spent projecting tree data into elements",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"mode"},
		),
		SubtreeSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "subtree_size_nodes",
				Help:      "Number of nodes in projected trees",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		MissingRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "missing_records_total",
				Help:      "Nodes whose skill or group record was absent",
			},
			[]string{"kind"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Number of live graph sessions",
			},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Domain events published",
			},
			[]string{"type"},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.RepoOperations,
		c.RepoDuration,
		c.QueryDuration,
		c.ProjectionDuration,
		c.SubtreeSize,
		c.MissingRecords,
		c.ActiveSessions,
		c.EventsPublished,
		c.CacheHits,
		c.CacheMisses,
	)

	return c
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordHTTP records one served request
func (c *Collector) RecordHTTP(method, route, status string, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRepoOperation records one repository call
func (c *Collector) RecordRepoOperation(operation string, duration time.Duration, err error) {
	c.RepoOperations.WithLabelValues(operation, statusLabel(err)).Inc()
	c.RepoDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordQuery records one query bus dispatch
func (c *Collector) RecordQuery(queryType string, duration time.Duration, err error) {
	c.QueryDuration.WithLabelValues(queryType, statusLabel(err)).Observe(duration.Seconds())
}

// RecordProjection records one projection run over nodeCount nodes
func (c *Collector) RecordProjection(structureOnly bool, nodeCount int, duration time.Duration) {
	mode := "full"
	if structureOnly {
		mode = "structure"
	}
	c.ProjectionDuration.WithLabelValues(mode).Observe(duration.Seconds())
	c.SubtreeSize.Observe(float64(nodeCount))
}

// RecordMissingRecord counts a node whose record was absent
func (c *Collector) RecordMissingRecord(kind string) {
	c.MissingRecords.WithLabelValues(kind).Inc()
}

func (c *Collector) SessionOpened()                  { c.ActiveSessions.Inc() }
func (c *Collector) SessionClosed()                  { c.ActiveSessions.Dec() }
func (c *Collector) CacheHit()                       { c.CacheHits.Inc() }
func (c *Collector) CacheMiss()                      { c.CacheMisses.Inc() }
func (c *Collector) EventPublished(eventType string) { c.EventsPublished.WithLabelValues(eventType).Inc() }

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
