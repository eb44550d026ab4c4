package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/patchwork/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing
// a PrometheusCollector never panics even if the registerer is shared.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	// Assembler metrics
	patches           prometheus.Counter
	subjectsAllocated prometheus.Counter
	subjectsReady     prometheus.Counter
	subjectsRetrieved prometheus.Counter
	subjectsInFlight  prometheus.Gauge
	addDuration       prometheus.Histogram

	// Pipeline metrics
	batchesSubmitted prometheus.Counter
	queueDepth       prometheus.Gauge
	reorderPending   prometheus.Gauge
	batchesProcessed *prometheus.CounterVec

	// Writer metrics
	writerOps     *prometheus.CounterVec
	writerLatency *prometheus.HistogramVec
	writerBytes   *prometheus.CounterVec
}

var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "patchwork" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "patchwork"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.patches = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assembler",
			Name:      "patches_total",
			Help:      "Total patches written into subject accumulators.",
		})
		p.subjectsAllocated = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assembler",
			Name:      "subjects_allocated_total",
			Help:      "Total subject accumulators allocated.",
		})
		p.subjectsReady = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assembler",
			Name:      "subjects_ready_total",
			Help:      "Total subjects marked ready for retrieval.",
		})
		p.subjectsRetrieved = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assembler",
			Name:      "subjects_retrieved_total",
			Help:      "Total assembled subjects handed back to callers.",
		})
		p.subjectsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "assembler",
			Name:      "subjects_in_flight",
			Help:      "Subjects seen but not yet retrieved.",
		})
		p.addDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "assembler",
			Name:      "add_duration_seconds",
			Help:      "Time spent assembling one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 9), // 100µs .. ~6.5s
		})

		p.batchesSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "pipeline",
			Name:      "batches_submitted_total",
			Help:      "Total batches accepted from producers.",
		})
		p.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "pipeline",
			Name:      "queue_depth",
			Help:      "Batches waiting in the pipeline queue.",
		})
		p.reorderPending = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "pipeline",
			Name:      "reorder_pending",
			Help:      "Batches held back until an earlier sequence arrives.",
		})
		p.batchesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "pipeline",
			Name:      "batches_processed_total",
			Help:      "Batches handed to the assembler by outcome (success,failure).",
		}, []string{"result"})

		p.writerOps = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "writer",
			Name:      "operations_total",
			Help:      "Storage operations by backend, operation and success.",
		}, []string{"backend", "op", "success"})
		p.writerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "writer",
			Name:      "operation_duration_seconds",
			Help:      "Latency of storage operations in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		}, []string{"backend", "op"})
		p.writerBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "writer",
			Name:      "bytes_written_total",
			Help:      "Encoded bytes persisted by backend.",
		}, []string{"backend"})

		p.reg.MustRegister(
			p.patches,
			p.subjectsAllocated,
			p.subjectsReady,
			p.subjectsRetrieved,
			p.subjectsInFlight,
			p.addDuration,
			p.batchesSubmitted,
			p.queueDepth,
			p.reorderPending,
			p.batchesProcessed,
			p.writerOps,
			p.writerLatency,
			p.writerBytes,
		)
	})
}

// AssemblerMetrics implementation

// RecordPatches adds count to the patch counter.
func (p *PrometheusCollector) RecordPatches(count int) {
	p.ensureRegistered()
	p.patches.Add(float64(count))
}

// RecordSubjectAllocated increments the allocation counter.
func (p *PrometheusCollector) RecordSubjectAllocated() {
	p.ensureRegistered()
	p.subjectsAllocated.Inc()
}

// RecordSubjectsReady adds count to the ready counter.
func (p *PrometheusCollector) RecordSubjectsReady(count int) {
	p.ensureRegistered()
	p.subjectsReady.Add(float64(count))
}

// RecordSubjectRetrieved increments the retrieval counter.
func (p *PrometheusCollector) RecordSubjectRetrieved() {
	p.ensureRegistered()
	p.subjectsRetrieved.Inc()
}

// SetSubjectsInFlight sets the in-flight gauge.
func (p *PrometheusCollector) SetSubjectsInFlight(count int) {
	p.ensureRegistered()
	p.subjectsInFlight.Set(float64(count))
}

// RecordAddDuration observes one batch assembly duration.
func (p *PrometheusCollector) RecordAddDuration(duration float64) {
	p.ensureRegistered()
	p.addDuration.Observe(duration)
}

// PipelineMetrics implementation

// RecordBatchSubmitted increments the submission counter.
func (p *PrometheusCollector) RecordBatchSubmitted() {
	p.ensureRegistered()
	p.batchesSubmitted.Inc()
}

// SetQueueDepth sets the queue depth gauge.
func (p *PrometheusCollector) SetQueueDepth(depth int) {
	p.ensureRegistered()
	p.queueDepth.Set(float64(depth))
}

// SetReorderPending sets the reorder gauge.
func (p *PrometheusCollector) SetReorderPending(count int) {
	p.ensureRegistered()
	p.reorderPending.Set(float64(count))
}

// RecordBatchProcessed increments the processed counter for the outcome.
func (p *PrometheusCollector) RecordBatchProcessed(success bool) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.batchesProcessed.WithLabelValues(result).Inc()
}

// WriterMetrics implementation

// RecordWriterOperation counts the operation and observes its latency.
func (p *PrometheusCollector) RecordWriterOperation(backend, operation string, duration float64, success bool) {
	p.ensureRegistered()
	p.writerOps.WithLabelValues(backend, operation, strconv.FormatBool(success)).Inc()
	p.writerLatency.WithLabelValues(backend, operation).Observe(duration)
}

// RecordBytesWritten adds n to the backend's byte counter.
func (p *PrometheusCollector) RecordBytesWritten(backend string, n int) {
	p.ensureRegistered()
	p.writerBytes.WithLabelValues(backend).Add(float64(n))
}
