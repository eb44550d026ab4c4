package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNop(t *testing.T) {
	metrics := NewNop()

	require.NotNil(t, metrics)
	require.IsType(t, &NopMetrics{}, metrics)
}

func TestNopMetrics_AssemblerMetrics(t *testing.T) {
	metrics := NewNop()

	// Should not panic with various inputs
	require.NotPanics(t, func() {
		metrics.RecordPatches(8)
		metrics.RecordPatches(0)
		metrics.RecordPatches(-1)
		metrics.RecordSubjectAllocated()
		metrics.RecordSubjectsReady(3)
		metrics.RecordSubjectRetrieved()
		metrics.SetSubjectsInFlight(2)
		metrics.RecordAddDuration(0.25)
		metrics.RecordAddDuration(-1.0)
	})
}

func TestNopMetrics_PipelineMetrics(t *testing.T) {
	metrics := NewNop()

	require.NotPanics(t, func() {
		metrics.RecordBatchSubmitted()
		metrics.SetQueueDepth(16)
		metrics.SetReorderPending(0)
		metrics.RecordBatchProcessed(true)
		metrics.RecordBatchProcessed(false)
	})
}

func TestNopMetrics_WriterMetrics(t *testing.T) {
	metrics := NewNop()

	require.NotPanics(t, func() {
		metrics.RecordWriterOperation("memory", "fill", 0.001, true)
		metrics.RecordWriterOperation("", "", 0, false)
		metrics.RecordBytesWritten("sqlite", 4096)
	})
}

func BenchmarkNopMetrics_RecordPatches(b *testing.B) {
	metrics := NewNop()

	for b.Loop() {
		metrics.RecordPatches(32)
	}
}
