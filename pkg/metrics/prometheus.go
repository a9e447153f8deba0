// Package metrics provides Prometheus metrics for the xptrack service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the xptrack service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Collection Metrics - daily highscore pulls
	collections        *prometheus.CounterVec
	collectionLatency  prometheus.Histogram
	staleSnapshots     prometheus.Counter
	upstreamPages      prometheus.Counter
	lastCollectionUnix prometheus.Gauge

	// Progression Gauges - latest stored snapshot
	currentRank       prometheus.Gauge
	currentLevel      prometheus.Gauge
	currentExperience prometheus.Gauge
	currentBaseValue  prometheus.Gauge

	// Report Metrics
	enrichLatency   prometheus.Histogram
	reportsRendered *prometheus.CounterVec

	// Repository Metrics
	repositoryEntries       prometheus.Gauge
	repositoryLoadLatency   prometheus.Histogram
	repositoryAppendLatency prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "xptrack",
		subsystem:        "progression",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	latencyBuckets := []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

	m.collections = m.counterVec("collections_total",
		"Total number of collection runs by result (success, duplicate, stale, not_found, upstream_error, error)", "result")
	m.collectionLatency = m.histogram("collection_latency_milliseconds",
		"End-to-end collection latency in milliseconds", latencyBuckets)
	m.staleSnapshots = m.counter("stale_snapshots_total",
		"Total number of collections rejected because upstream had not updated yet")
	m.upstreamPages = m.counter("upstream_pages_fetched_total",
		"Total number of highscore pages fetched from upstream")
	m.lastCollectionUnix = m.gauge("last_collection_timestamp_seconds",
		"Unix time of the last successful collection")

	m.currentRank = m.gauge("rank", "Highscore rank of the latest stored snapshot")
	m.currentLevel = m.gauge("level", "Level of the latest stored snapshot")
	m.currentExperience = m.gauge("experience", "Cumulative experience of the latest stored snapshot")
	m.currentBaseValue = m.gauge("base_value", "Base value derived from the latest stored level")

	m.enrichLatency = m.histogram("enrich_latency_milliseconds",
		"Latency of history enrichment in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100})
	m.reportsRendered = m.counterVec("reports_rendered_total",
		"Total number of rendered reports by format", "format")

	m.repositoryEntries = m.gauge("repository_entries_total", "Number of stored history entries")
	m.repositoryLoadLatency = m.histogram("repository_load_latency_milliseconds",
		"Latency of loading the history series in milliseconds", latencyBuckets)
	m.repositoryAppendLatency = m.histogram("repository_append_latency_milliseconds",
		"Latency of appending a history entry in milliseconds", latencyBuckets)

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component and error type", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by HTTP endpoint", "endpoint", "method", "error_type")
}

// RecordCollection increments the collection counter for result.
func RecordCollection(result string) {
	globalManager.collections.WithLabelValues(result).Inc()
}

// RecordCollectionLatency records collection latency in milliseconds.
func RecordCollectionLatency(latencyMs float64) {
	globalManager.collectionLatency.Observe(latencyMs)
}

// RecordStaleSnapshot increments the stale snapshot counter.
func RecordStaleSnapshot() {
	globalManager.staleSnapshots.Inc()
}

// RecordUpstreamPage increments the fetched upstream pages counter.
func RecordUpstreamPage() {
	globalManager.upstreamPages.Inc()
}

// UpdateLastCollection sets the last successful collection time.
func UpdateLastCollection(unixSeconds int64) {
	globalManager.lastCollectionUnix.Set(float64(unixSeconds))
}

// UpdateProgression sets the progression gauges from the latest snapshot.
func UpdateProgression(rank, level, experience, baseValue int64) {
	globalManager.currentRank.Set(float64(rank))
	globalManager.currentLevel.Set(float64(level))
	globalManager.currentExperience.Set(float64(experience))
	globalManager.currentBaseValue.Set(float64(baseValue))
}

// RecordEnrichLatency records enrichment latency in milliseconds.
func RecordEnrichLatency(latencyMs float64) {
	globalManager.enrichLatency.Observe(latencyMs)
}

// RecordReportRendered increments the rendered reports counter for format.
func RecordReportRendered(format string) {
	globalManager.reportsRendered.WithLabelValues(format).Inc()
}

// UpdateRepositoryEntries sets the number of stored entries.
func UpdateRepositoryEntries(count int) {
	globalManager.repositoryEntries.Set(float64(count))
}

// RecordRepositoryLoadLatency records series load latency in milliseconds.
func RecordRepositoryLoadLatency(latencyMs float64) {
	globalManager.repositoryLoadLatency.Observe(latencyMs)
}

// RecordRepositoryAppendLatency records append latency in milliseconds.
func RecordRepositoryAppendLatency(latencyMs float64) {
	globalManager.repositoryAppendLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error for an HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom registry serving the service metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
