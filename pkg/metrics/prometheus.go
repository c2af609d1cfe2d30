// Package metrics provides Prometheus metrics for the gitlytix service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Scoring
	scoreComputations *prometheus.CounterVec
	scoringLatency    prometheus.Histogram
	repoScore         *prometheus.GaugeVec
	metricNormalized  *prometheus.GaugeVec
	metricsSkipped    *prometheus.CounterVec

	// Providers
	providerFetches   *prometheus.CounterVec
	providerFallbacks *prometheus.CounterVec
	providerLatency   *prometheus.HistogramVec

	// Ingest pipeline
	eventsProcessed    prometheus.Counter
	eventsDuplicate    prometheus.Counter
	eventsInvalid      prometheus.Counter
	eventsFailed       prometheus.Counter
	ingestBatchLatency prometheus.Histogram

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueRejects     prometheus.Counter

	// Workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// Storage
	storeQueryLatency  *prometheus.HistogramVec
	storeUpdateLatency prometheus.Histogram
	scoreboardSize     prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gitlytix",
		subsystem:        "",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.scoreComputations = auto.NewCounterVec(m.counterOpts("score_computations_total",
		"Composite scores computed, by resulting state"), []string{"state"})
	m.scoringLatency = auto.NewHistogram(m.histogramOpts("scoring_latency_milliseconds",
		"Time to fetch inputs and compute a repository score", nil))
	m.repoScore = auto.NewGaugeVec(m.gaugeOpts("repo_score",
		"Latest composite health score per repository"), []string{"repo"})
	m.metricNormalized = auto.NewGaugeVec(m.gaugeOpts("metric_normalized",
		"Latest normalized value (0-100) per repository and metric"), []string{"repo", "metric"})
	m.metricsSkipped = auto.NewCounterVec(m.counterOpts("metrics_skipped_total",
		"Configured metrics left out of a score, by reason"), []string{"metric", "reason"})

	m.providerFetches = auto.NewCounterVec(m.counterOpts("provider_fetches_total",
		"Metric fetches by provider and outcome"), []string{"provider", "metric", "outcome"})
	m.providerFallbacks = auto.NewCounterVec(m.counterOpts("provider_fallbacks_total",
		"Metric values replaced by configured fallbacks"), []string{"metric"})
	m.providerLatency = auto.NewHistogramVec(m.histogramOpts("provider_latency_milliseconds",
		"Provider fetch latency", nil), []string{"provider"})

	m.eventsProcessed = auto.NewCounter(m.counterOpts("events_processed_total",
		"Events written to the event store"))
	m.eventsDuplicate = auto.NewCounter(m.counterOpts("events_duplicate_total",
		"Events dropped because their id was already seen"))
	m.eventsInvalid = auto.NewCounter(m.counterOpts("events_invalid_total",
		"Events rejected by validation"))
	m.eventsFailed = auto.NewCounter(m.counterOpts("events_failed_total",
		"Events that could not be written"))
	m.ingestBatchLatency = auto.NewHistogram(m.histogramOpts("ingest_batch_latency_milliseconds",
		"Time to write one batch of events", nil))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Events waiting in the ingest queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Ingest queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Ingest queue fill ratio"))
	m.queueEnqueues = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Events accepted by the queue"))
	m.queueRejects = auto.NewCounter(m.counterOpts("queue_reject_total", "Events rejected by the queue"))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Running ingest workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Time a worker spends on one flush", nil))

	m.storeQueryLatency = auto.NewHistogramVec(m.histogramOpts("store_query_latency_milliseconds",
		"Event store query latency", nil), []string{"query"})
	m.storeUpdateLatency = auto.NewHistogram(m.histogramOpts("scoreboard_update_latency_milliseconds",
		"Scoreboard update latency", []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10}))
	m.scoreboardSize = auto.NewGauge(m.gaugeOpts("scoreboard_repos", "Repositories on the scoreboard"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", nil), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Errors by component and type"), []string{"component", "error_type"})
	m.errorsByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total",
		"Errors by type and severity"), []string{"error_type", "severity"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"HTTP errors by endpoint"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"Average GC pause in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100}))
}

// RecordScore records a finished score computation for repo.
func RecordScore(repo, state string, score, latencyMs float64) {
	globalManager.scoreComputations.WithLabelValues(state).Inc()
	globalManager.scoringLatency.Observe(latencyMs)
	if repo != "" {
		globalManager.repoScore.WithLabelValues(repo).Set(score)
	}
}

// UpdateMetricNormalized sets the latest normalized value of metric for repo.
func UpdateMetricNormalized(repo, metric string, normalized float64) {
	globalManager.metricNormalized.WithLabelValues(repo, metric).Set(normalized)
}

// RecordMetricSkipped counts a configured metric left out of a score.
func RecordMetricSkipped(metric, reason string) {
	globalManager.metricsSkipped.WithLabelValues(metric, reason).Inc()
}

// RecordProviderFetch counts one metric fetch; outcome is ok, empty or error.
func RecordProviderFetch(provider, metric, outcome string) {
	globalManager.providerFetches.WithLabelValues(provider, metric, outcome).Inc()
}

// RecordProviderFallback counts a metric replaced by its fallback value.
func RecordProviderFallback(metric string) {
	globalManager.providerFallbacks.WithLabelValues(metric).Inc()
}

// RecordProviderLatency observes a full provider fetch.
func RecordProviderLatency(provider string, latencyMs float64) {
	globalManager.providerLatency.WithLabelValues(provider).Observe(latencyMs)
}

// RecordEventsProcessed adds n stored events.
func RecordEventsProcessed(n int) { globalManager.eventsProcessed.Add(float64(n)) }

// RecordEventDuplicate increments the duplicate events counter.
func RecordEventDuplicate() { globalManager.eventsDuplicate.Inc() }

// RecordEventInvalid increments the invalid events counter.
func RecordEventInvalid() { globalManager.eventsInvalid.Inc() }

// RecordEventsFailed adds n events that could not be stored.
func RecordEventsFailed(n int) { globalManager.eventsFailed.Add(float64(n)) }

// RecordIngestBatchLatency observes one batch write.
func RecordIngestBatchLatency(latencyMs float64) { globalManager.ingestBatchLatency.Observe(latencyMs) }

// UpdateQueue sets the queue gauges.
func UpdateQueue(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	globalManager.queueCapacity.Set(float64(capacity))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueues.Inc() }

// RecordQueueReject increments the reject counter.
func RecordQueueReject() { globalManager.queueRejects.Inc() }

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(n int) { globalManager.workerActiveCount.Set(float64(n)) }

// RecordWorkerProcessingLatency observes one worker flush.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordStoreQueryLatency observes an event store query.
func RecordStoreQueryLatency(query string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(query).Observe(latencyMs)
}

// RecordScoreboardUpdateLatency observes a scoreboard write.
func RecordScoreboardUpdateLatency(latencyMs float64) {
	globalManager.storeUpdateLatency.Observe(latencyMs)
}

// UpdateScoreboardSize sets the scoreboard size.
func UpdateScoreboardSize(n int) { globalManager.scoreboardSize.Set(float64(n)) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
