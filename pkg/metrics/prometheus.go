// Package metrics provides Prometheus metrics for the gotsim pipeline and its
// lookup service.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for gotsim.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer
	gatherer         prometheus.Gatherer

	// Pipeline stage metrics
	stageRows        *prometheus.CounterVec
	stageRowsDropped *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	stageLastSuccess *prometheus.GaugeVec
	stageErrors      *prometheus.CounterVec

	// Model quality
	modelAccuracy prometheus.Gauge
	offlineRows   prometheus.Gauge

	// Prediction store
	storeWrites  prometheus.Counter
	storeLatency *prometheus.HistogramVec
	storeRecords prometheus.Gauge
	lookups      *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// Probe
	probeChecks *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "gotsim",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
		gatherer:         prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.stageRows = auto.NewCounterVec(m.counterOpts("stage_rows_total",
		"Rows read and written by pipeline stages"), []string{"stage", "direction"})
	m.stageRowsDropped = auto.NewCounterVec(m.counterOpts("stage_rows_dropped_total",
		"Rows filtered out by pipeline stages as data-quality defects"), []string{"stage", "reason"})
	m.stageDuration = auto.NewHistogramVec(m.histogramOpts("stage_duration_seconds",
		"Wall time of pipeline stages"), []string{"stage"})
	m.stageLastSuccess = auto.NewGaugeVec(m.gaugeOpts("stage_last_success_unix",
		"Unix timestamp of the last successful run per stage"), []string{"stage"})
	m.stageErrors = auto.NewCounterVec(m.counterOpts("stage_errors_total",
		"Failed pipeline stages by error kind"), []string{"stage", "kind"})

	m.modelAccuracy = auto.NewGauge(m.gaugeOpts("model_test_accuracy",
		"Accuracy of the last trained model on its held-out split"))
	m.offlineRows = auto.NewGauge(m.gaugeOpts("offline_score_rows",
		"Rows in the last offline score table"))

	m.storeWrites = auto.NewCounter(m.counterOpts("store_writes_total",
		"Prediction rows written to the store"))
	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_latency_seconds",
		"Prediction store operation latency"), []string{"op"})
	m.storeRecords = auto.NewGauge(m.gaugeOpts("store_records",
		"Prediction rows currently held by the store"))
	m.lookups = auto.NewCounterVec(m.counterOpts("lookups_total",
		"Prediction lookups by result"), []string{"result"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_seconds",
		"HTTP request duration"), []string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Total number of errors by endpoint"), []string{"endpoint", "method", "error_type"})

	m.probeChecks = auto.NewCounterVec(m.counterOpts("probe_checks_total",
		"Probe comparisons against a running lookup service by result"), []string{"result"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes",
		"Heap memory in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count",
		"Number of goroutines"))
}

// Enabled reports whether recording is on.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often long-running processes refresh gauges.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Handler serves the manager's registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// WriteToTextfile writes the registry to path in the node-exporter textfile
// format. The file is replaced atomically.
func (m *Manager) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("%w: write textfile %s: %w", ErrObserveFailed, path, err)
	}
	return nil
}

// RecordStage records a finished stage with its row counts and duration.
func (m *Manager) RecordStage(stage string, rowsIn, rowsOut int, d time.Duration) {
	if !m.enabled {
		return
	}
	m.stageRows.WithLabelValues(stage, "in").Add(float64(rowsIn))
	m.stageRows.WithLabelValues(stage, "out").Add(float64(rowsOut))
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	m.stageLastSuccess.WithLabelValues(stage).Set(float64(time.Now().Unix()))
}

// RecordDropped counts rows a stage filtered out.
func (m *Manager) RecordDropped(stage, reason string, n int) {
	if !m.enabled || n == 0 {
		return
	}
	m.stageRowsDropped.WithLabelValues(stage, reason).Add(float64(n))
}

// RecordStageError counts a failed stage by error kind.
func (m *Manager) RecordStageError(stage, kind string) {
	if !m.enabled {
		return
	}
	m.stageErrors.WithLabelValues(stage, kind).Inc()
}

// SetModelAccuracy publishes the held-out accuracy of the last model.
func (m *Manager) SetModelAccuracy(acc float64) {
	if m.enabled {
		m.modelAccuracy.Set(acc)
	}
}

// SetOfflineRows publishes the size of the last offline score table.
func (m *Manager) SetOfflineRows(n int) {
	if m.enabled {
		m.offlineRows.Set(float64(n))
	}
}

// RecordStoreWrite counts rows written and the write latency.
func (m *Manager) RecordStoreWrite(rows int, d time.Duration) {
	if !m.enabled {
		return
	}
	m.storeWrites.Add(float64(rows))
	m.storeLatency.WithLabelValues("replace").Observe(d.Seconds())
}

// RecordStoreQuery observes the latency of a read operation.
func (m *Manager) RecordStoreQuery(op string, d time.Duration) {
	if m.enabled {
		m.storeLatency.WithLabelValues(op).Observe(d.Seconds())
	}
}

// SetStoreRecords publishes the number of stored predictions.
func (m *Manager) SetStoreRecords(n int) {
	if m.enabled {
		m.storeRecords.Set(float64(n))
	}
}

// RecordLookup counts a lookup by result: hit, miss or error.
func (m *Manager) RecordLookup(result string) {
	if m.enabled {
		m.lookups.WithLabelValues(result).Inc()
	}
}

// RecordHTTPRequest records an HTTP request and its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, d time.Duration) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(d.Seconds())
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	if m.enabled {
		m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// RecordProbe counts one probe comparison: match, mismatch or error.
func (m *Manager) RecordProbe(result string) {
	if m.enabled {
		m.probeChecks.WithLabelValues(result).Inc()
	}
}

// UpdateSystem sets memory and goroutine gauges.
func (m *Manager) UpdateSystem(heapBytes uint64, goroutines int) {
	if !m.enabled {
		return
	}
	m.systemMemoryUsage.Set(float64(heapBytes))
	m.systemGoroutineCount.Set(float64(goroutines))
}

// Default returns the process-wide manager bound to the custom registry.
func Default() *Manager { return globalManager }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
