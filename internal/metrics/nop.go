// Package metrics provides MetricsCollector implementations.
package metrics

import "github.com/arloliu/patchwork/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. It is the default collector when none is configured.
type NopMetrics struct{}

var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// AssemblerMetrics implementation

// RecordPatches discards the patch count.
func (n *NopMetrics) RecordPatches(_ /* count */ int) {}

// RecordSubjectAllocated discards the allocation event.
func (n *NopMetrics) RecordSubjectAllocated() {}

// RecordSubjectsReady discards the ready count.
func (n *NopMetrics) RecordSubjectsReady(_ /* count */ int) {}

// RecordSubjectRetrieved discards the retrieval event.
func (n *NopMetrics) RecordSubjectRetrieved() {}

// SetSubjectsInFlight discards the in-flight gauge.
func (n *NopMetrics) SetSubjectsInFlight(_ /* count */ int) {}

// RecordAddDuration discards the batch duration.
func (n *NopMetrics) RecordAddDuration(_ /* duration */ float64) {}

// PipelineMetrics implementation

// RecordBatchSubmitted discards the submission event.
func (n *NopMetrics) RecordBatchSubmitted() {}

// SetQueueDepth discards the queue depth gauge.
func (n *NopMetrics) SetQueueDepth(_ /* depth */ int) {}

// SetReorderPending discards the reorder gauge.
func (n *NopMetrics) SetReorderPending(_ /* count */ int) {}

// RecordBatchProcessed discards the processing outcome.
func (n *NopMetrics) RecordBatchProcessed(_ /* success */ bool) {}

// WriterMetrics implementation

// RecordWriterOperation discards the storage operation metric.
func (n *NopMetrics) RecordWriterOperation(_ /* backend */, _ /* operation */ string, _ /* duration */ float64, _ /* success */ bool) {
}

// RecordBytesWritten discards the byte count.
func (n *NopMetrics) RecordBytesWritten(_ /* backend */ string, _ /* n */ int) {}
