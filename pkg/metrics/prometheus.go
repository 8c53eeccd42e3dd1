// Package metrics provides Prometheus metrics for the image tagger core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the tagger service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Feature store
	featuresAppended   *prometheus.CounterVec
	featuresDuplicate  *prometheus.CounterVec
	featuresRejected   prometheus.Counter
	storeRecordsTotal  prometheus.Gauge
	storeImagesTotal   prometheus.Gauge
	storeQueryLatency  prometheus.Histogram
	storeAppendLatency prometheus.Histogram

	// Catalog and composite engine
	catalogEntries       prometheus.Gauge
	catalogViolations    prometheus.Gauge
	compositeEvaluations *prometheus.CounterVec
	resultCacheHits      prometheus.Counter
	resultCacheMisses    prometheus.Counter

	// Export, IRR and inspector
	exportRows      prometheus.Counter
	exportLatency   prometheus.Histogram
	irrComputations *prometheus.CounterVec
	inspections     prometheus.Counter

	// Ingest queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// VLM producer
	vlmStubs *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tagger",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
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

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.featuresAppended = m.counterVec("features_appended_total", "Feature records appended, by source kind", "source_kind")
	m.featuresDuplicate = m.counterVec("features_duplicate_total", "Appends rejected as duplicate (image, key, source)", "source_kind")
	m.featuresRejected = m.counter("features_rejected_total", "Appends rejected as invalid records")
	m.storeRecordsTotal = m.gauge("store_records_total", "Feature records held by the store")
	m.storeImagesTotal = m.gauge("store_images_total", "Images registered")
	m.storeQueryLatency = m.histogram("store_query_latency_milliseconds", "Feature store query latency in milliseconds")
	m.storeAppendLatency = m.histogram("store_append_latency_milliseconds", "Feature store append latency in milliseconds")

	m.catalogEntries = m.gauge("catalog_entries", "Entries in the index catalog")
	m.catalogViolations = m.gauge("catalog_violations", "Schema violations found by the last catalog validation")
	m.compositeEvaluations = m.counterVec("composite_evaluations_total", "Composite index evaluations by index and outcome", "index", "outcome")
	m.resultCacheHits = m.counter("result_cache_hits_total", "Composite result cache hits")
	m.resultCacheMisses = m.counter("result_cache_misses_total", "Composite result cache misses")

	m.exportRows = m.counter("export_rows_total", "BN snapshot rows exported")
	m.exportLatency = m.histogram("export_latency_milliseconds", "BN snapshot export latency in milliseconds")
	m.irrComputations = m.counterVec("irr_computations_total", "IRR computations by outcome", "outcome")
	m.inspections = m.counter("inspections_total", "Tag inspector payloads built")

	m.queueSize = m.gauge("ingest_queue_size", "Current size of the ingest queue")
	m.queueCapacity = m.gauge("ingest_queue_capacity", "Maximum ingest queue capacity")
	m.queueEnqueued = m.counter("ingest_queue_enqueue_total", "Records enqueued for ingest")
	m.queueDequeued = m.counter("ingest_queue_dequeue_total", "Records dequeued for ingest")
	m.queueEnqueueErrors = m.counter("ingest_queue_enqueue_errors_total", "Enqueue attempts rejected by backpressure")
	m.workerCount = m.gauge("ingest_worker_count", "Ingest workers running")
	m.workerProcessingLatency = m.histogram("ingest_worker_latency_milliseconds", "Ingest worker processing latency in milliseconds")
	m.workerErrors = m.counter("ingest_worker_errors_total", "Ingest worker append errors other than duplicates")

	m.vlmStubs = m.counterVec("vlm_stub_records_total", "Confidence-0 stub records written by the VLM producer", "reason")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
}

// Feature store metrics.

// RecordFeatureAppended counts a successful append.
func RecordFeatureAppended(sourceKind string) {
	globalManager.featuresAppended.WithLabelValues(sourceKind).Inc()
}

// RecordFeatureDuplicate counts an append rejected as a duplicate.
func RecordFeatureDuplicate(sourceKind string) {
	globalManager.featuresDuplicate.WithLabelValues(sourceKind).Inc()
}

// RecordFeatureRejected counts an append rejected as invalid.
func RecordFeatureRejected() {
	globalManager.featuresRejected.Inc()
}

// UpdateStoreRecordsTotal sets the number of stored feature records.
func UpdateStoreRecordsTotal(count int) {
	globalManager.storeRecordsTotal.Set(float64(count))
}

// UpdateStoreImagesTotal sets the number of registered images.
func UpdateStoreImagesTotal(count int) {
	globalManager.storeImagesTotal.Set(float64(count))
}

// RecordStoreQueryLatency records feature store query latency.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// RecordStoreAppendLatency records feature store append latency.
func RecordStoreAppendLatency(latencyMs float64) {
	globalManager.storeAppendLatency.Observe(latencyMs)
}

// Catalog and engine metrics.

// UpdateCatalogEntries sets the catalog size.
func UpdateCatalogEntries(count int) {
	globalManager.catalogEntries.Set(float64(count))
}

// UpdateCatalogViolations sets the violation count of the last validation.
func UpdateCatalogViolations(count int) {
	globalManager.catalogViolations.Set(float64(count))
}

// RecordCompositeEvaluation counts one evaluation; outcome is "computed" or "omitted".
func RecordCompositeEvaluation(index, outcome string) {
	globalManager.compositeEvaluations.WithLabelValues(index, outcome).Inc()
}

// RecordResultCacheHit counts a result cache hit.
func RecordResultCacheHit() {
	globalManager.resultCacheHits.Inc()
}

// RecordResultCacheMiss counts a result cache miss.
func RecordResultCacheMiss() {
	globalManager.resultCacheMisses.Inc()
}

// Export, IRR and inspector metrics.

// RecordExportRows counts exported rows.
func RecordExportRows(n int) {
	globalManager.exportRows.Add(float64(n))
}

// RecordExportLatency records export latency.
func RecordExportLatency(latencyMs float64) {
	globalManager.exportLatency.Observe(latencyMs)
}

// RecordIRRComputation counts an IRR computation; outcome is "scored" or "insufficient".
func RecordIRRComputation(outcome string) {
	globalManager.irrComputations.WithLabelValues(outcome).Inc()
}

// RecordInspection counts an inspector payload.
func RecordInspection() {
	globalManager.inspections.Inc()
}

// Ingest metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordVLMStub counts stub records written by the VLM producer.
func RecordVLMStub(reason string, n int) {
	globalManager.vlmStubs.WithLabelValues(reason).Add(float64(n))
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
