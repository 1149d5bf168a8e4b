// Package metrics provides the engine's Prometheus metrics registry: rule
// and operator evaluation counters/histograms, managed-collection
// persistence counters, and stream-processor throughput, in place of the
// teacher's HTTP/blockchain-transaction metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the engine registers.
type Metrics struct {
	RuleEvaluationsTotal  *prometheus.CounterVec
	RuleEvaluationSeconds *prometheus.HistogramVec

	OperatorExecutionsTotal  *prometheus.CounterVec
	OperatorExecutionSeconds *prometheus.HistogramVec

	TransformationsTotal *prometheus.CounterVec

	ErrorsTotal *prometheus.CounterVec

	ManagedCollectionFlushTotal    *prometheus.CounterVec
	ManagedCollectionFlushSeconds  *prometheus.HistogramVec
	ManagedCollectionEntriesLoaded prometheus.Gauge

	StreamBytesProcessedTotal *prometheus.CounterVec

	ArenasActive prometheus.Gauge
}

// New creates a Metrics instance registered against prometheus's default
// registerer, with every collector's fully-qualified name prefixed by
// namespace.
func New(namespace string) *Metrics {
	return NewWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer.
// A nil registerer builds the collectors without registering them, for
// tests that want an isolated instance.
func NewWithRegistry(namespace string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RuleEvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule evaluations, by phase and match outcome",
			},
			[]string{"phase", "matched"},
		),
		RuleEvaluationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rule_evaluation_seconds",
				Help:      "Rule evaluation latency in seconds",
				Buckets:   []float64{.00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"phase"},
		),
		OperatorExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operator_executions_total",
				Help:      "Total number of operator instance executions, by operator and result",
			},
			[]string{"operator", "result"},
		),
		OperatorExecutionSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operator_execution_seconds",
				Help:      "Operator instance execution latency in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"operator"},
		),
		TransformationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transformations_total",
				Help:      "Total number of transformation applications, by transformation name",
			},
			[]string{"transformation"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of core errors, by kind and operation",
			},
			[]string{"kind", "op"},
		),
		ManagedCollectionFlushTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "managed_collection_flush_total",
				Help:      "Total number of managed-collection persistence flushes, by backend and status",
			},
			[]string{"backend", "status"},
		),
		ManagedCollectionFlushSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "managed_collection_flush_seconds",
				Help:      "Managed-collection persistence flush latency in seconds",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"backend"},
		),
		ManagedCollectionEntriesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "managed_collection_entries_loaded",
				Help:      "Current number of entries loaded across all managed collections",
			},
		),
		StreamBytesProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_bytes_processed_total",
				Help:      "Total number of bytes processed by stream processors, by type tag",
			},
			[]string{"type_tag"},
		),
		ArenasActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "arenas_active",
				Help:      "Current number of arenas that have not yet been released",
			},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RuleEvaluationsTotal,
			m.RuleEvaluationSeconds,
			m.OperatorExecutionsTotal,
			m.OperatorExecutionSeconds,
			m.TransformationsTotal,
			m.ErrorsTotal,
			m.ManagedCollectionFlushTotal,
			m.ManagedCollectionFlushSeconds,
			m.ManagedCollectionEntriesLoaded,
			m.StreamBytesProcessedTotal,
			m.ArenasActive,
		)
	}

	return m
}

// RecordRuleEvaluation records one rule evaluation.
func (m *Metrics) RecordRuleEvaluation(phase string, matched bool, duration time.Duration) {
	matchedLabel := "false"
	if matched {
		matchedLabel = "true"
	}
	m.RuleEvaluationsTotal.WithLabelValues(phase, matchedLabel).Inc()
	m.RuleEvaluationSeconds.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordOperatorExecution records one operator instance execution.
func (m *Metrics) RecordOperatorExecution(operator, result string, duration time.Duration) {
	m.OperatorExecutionsTotal.WithLabelValues(operator, result).Inc()
	m.OperatorExecutionSeconds.WithLabelValues(operator).Observe(duration.Seconds())
}

// RecordTransformation records one transformation application.
func (m *Metrics) RecordTransformation(transformation string) {
	m.TransformationsTotal.WithLabelValues(transformation).Inc()
}

// RecordError records one core error, keyed by its kind and operation.
func (m *Metrics) RecordError(kind, op string) {
	m.ErrorsTotal.WithLabelValues(kind, op).Inc()
}

// RecordManagedCollectionFlush records one persistence flush.
func (m *Metrics) RecordManagedCollectionFlush(backend, status string, duration time.Duration) {
	m.ManagedCollectionFlushTotal.WithLabelValues(backend, status).Inc()
	m.ManagedCollectionFlushSeconds.WithLabelValues(backend).Observe(duration.Seconds())
}

// SetManagedCollectionEntriesLoaded sets the current loaded-entry gauge.
func (m *Metrics) SetManagedCollectionEntriesLoaded(count int) {
	m.ManagedCollectionEntriesLoaded.Set(float64(count))
}

// RecordStreamBytesProcessed records bytes consumed by a stream processor.
func (m *Metrics) RecordStreamBytesProcessed(typeTag string, n int) {
	m.StreamBytesProcessedTotal.WithLabelValues(typeTag).Add(float64(n))
}

// SetArenasActive sets the current active-arena gauge.
func (m *Metrics) SetArenasActive(count int) {
	m.ArenasActive.Set(float64(count))
}

var (
	global   *Metrics
	globalMu sync.Mutex
)

// Init initializes (once) and returns the global Metrics instance.
func Init(namespace string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New(namespace)
	}
	return global
}

// Global returns the global Metrics instance, initializing it with the
// "rulecore" namespace if Init was never called.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New("rulecore")
	}
	return global
}
