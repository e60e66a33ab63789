// Package metrics provides Prometheus metrics for the scheduling engine.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	executionBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Optimization
	executions        *prometheus.CounterVec
	executionLatency  *prometheus.HistogramVec
	catalogFailures   *prometheus.CounterVec
	reconciliations   *prometheus.CounterVec
	eventsUpdated     prometheus.Counter
	eventsSkipped     prometheus.Counter
	reconcileConflict prometheus.Counter

	// Schedule quality
	violations *prometheus.CounterVec
	kpi        *prometheus.GaugeVec

	// Live model
	liveOperations prometheus.Gauge
	liveVersion    prometheus.Gauge

	// Scenarios and history
	scenarioBatches prometheus.Counter
	scenarioLatency prometheus.Histogram
	historyLatency  *prometheus.HistogramVec

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
		namespace:        "sched",
		subsystem:        "engine",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		// Solver runs are bounded by the optimizer timeout, minutes rather than milliseconds.
		executionBuckets: []float64{100, 500, 1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.executions = auto.NewCounterVec(
		m.counterOpts("executions_total", "Optimization executions by algorithm and outcome"),
		[]string{"algorithm", "outcome"},
	)
	execOpts := m.histogramOpts("execution_duration_milliseconds", "Round-trip time of optimization executions")
	execOpts.Buckets = m.executionBuckets
	m.executionLatency = auto.NewHistogramVec(
		execOpts,
		[]string{"outcome"},
	)
	m.catalogFailures = auto.NewCounterVec(
		m.counterOpts("catalog_failures_total", "Algorithm catalog fetches that fell back to an empty list"),
		[]string{"catalog"},
	)
	m.reconciliations = auto.NewCounterVec(
		m.counterOpts("reconciliations_total", "Proposal applications by outcome"),
		[]string{"outcome"},
	)
	m.eventsUpdated = auto.NewCounter(m.counterOpts("events_updated_total", "Live operations retimed by reconciliation"))
	m.eventsSkipped = auto.NewCounter(m.counterOpts("events_skipped_total", "Proposed operations missing from the live model"))
	m.reconcileConflict = auto.NewCounter(m.counterOpts("reconcile_conflicts_total", "Apply requests refused because another was in flight"))

	m.violations = auto.NewCounterVec(
		m.counterOpts("violations_total", "Constraint violations reported by rule and severity"),
		[]string{"rule", "severity"},
	)
	m.kpi = auto.NewGaugeVec(
		m.gaugeOpts("kpi", "Last computed schedule KPI value"),
		[]string{"name"},
	)

	m.liveOperations = auto.NewGauge(m.gaugeOpts("live_model_operations", "Operations currently held by the live model"))
	m.liveVersion = auto.NewGauge(m.gaugeOpts("live_model_version", "Commit counter of the live model"))

	m.scenarioBatches = auto.NewCounter(m.counterOpts("scenario_batches_total", "What-if scenario batches evaluated"))
	m.scenarioLatency = auto.NewHistogram(m.histogramOpts("scenario_batch_duration_milliseconds", "Wall time of a scenario batch"))
	m.historyLatency = auto.NewHistogramVec(
		m.histogramOpts("history_operation_duration_milliseconds", "Run history store latency by operation"),
		[]string{"operation"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
}

// RegisterRuntimeCollectors adds Go runtime and process collectors to the custom registry.
func RegisterRuntimeCollectors() error {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := customRegistry.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("%w: %w", ErrRegisterFailed, err)
		}
	}
	return nil
}

// RecordExecution records one optimization execution.
func RecordExecution(algorithm, outcome string, latencyMs float64) {
	if algorithm == "" {
		algorithm = "unknown"
	}
	globalManager.executions.WithLabelValues(algorithm, outcome).Inc()
	globalManager.executionLatency.WithLabelValues(outcome).Observe(latencyMs)
}

// RecordCatalogFailure counts a catalog fetch that returned nothing.
func RecordCatalogFailure(catalog string) {
	globalManager.catalogFailures.WithLabelValues(catalog).Inc()
}

// RecordReconciliation records one apply with its event counts.
func RecordReconciliation(outcome string, updated, skipped int) {
	globalManager.reconciliations.WithLabelValues(outcome).Inc()
	globalManager.eventsUpdated.Add(float64(updated))
	globalManager.eventsSkipped.Add(float64(skipped))
}

// RecordReconcileConflict counts an apply refused because one was in flight.
func RecordReconcileConflict() {
	globalManager.reconcileConflict.Inc()
}

// RecordViolation counts one reported violation.
func RecordViolation(rule, severity string) {
	globalManager.violations.WithLabelValues(rule, severity).Inc()
}

// UpdateKPI sets the last value of a named KPI.
func UpdateKPI(name string, value float64) {
	globalManager.kpi.WithLabelValues(name).Set(value)
}

// UpdateLiveModel sets the live model gauges.
func UpdateLiveModel(operations int, version uint64) {
	globalManager.liveOperations.Set(float64(operations))
	globalManager.liveVersion.Set(float64(version))
}

// RecordScenarioBatch records the wall time of a scenario batch.
func RecordScenarioBatch(latencyMs float64) {
	globalManager.scenarioBatches.Inc()
	globalManager.scenarioLatency.Observe(latencyMs)
}

// RecordHistoryLatency records run history store latency.
func RecordHistoryLatency(operation string, latencyMs float64) {
	globalManager.historyLatency.WithLabelValues(operation).Observe(latencyMs)
}

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
