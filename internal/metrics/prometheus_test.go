package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewPrometheus_Defaults(t *testing.T) {
	p := NewPrometheus(nil, "")

	require.Equal(t, prometheus.DefaultRegisterer, p.reg)
	require.Equal(t, "patchwork", p.namespace)
}

func TestPrometheusCollector_LazyRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewPrometheus(reg, "lazy")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families, "nothing registers before first use")
}

func TestPrometheusCollector_AssemblerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordPatches(4)
	p.RecordPatches(2)
	p.RecordSubjectAllocated()
	p.RecordSubjectsReady(2)
	p.RecordSubjectRetrieved()
	p.SetSubjectsInFlight(1)
	p.RecordAddDuration(0.01)

	require.InDelta(t, 6.0, testutil.ToFloat64(p.patches), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.subjectsAllocated), 0)
	require.InDelta(t, 2.0, testutil.ToFloat64(p.subjectsReady), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.subjectsRetrieved), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.subjectsInFlight), 0)
	require.Equal(t, 1, testutil.CollectAndCount(p.addDuration))
}

func TestPrometheusCollector_PipelineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordBatchSubmitted()
	p.RecordBatchSubmitted()
	p.SetQueueDepth(3)
	p.SetReorderPending(1)
	p.RecordBatchProcessed(true)
	p.RecordBatchProcessed(false)
	p.RecordBatchProcessed(true)

	require.InDelta(t, 2.0, testutil.ToFloat64(p.batchesSubmitted), 0)
	require.InDelta(t, 3.0, testutil.ToFloat64(p.queueDepth), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.reorderPending), 0)
	require.InDelta(t, 2.0, testutil.ToFloat64(p.batchesProcessed.WithLabelValues("success")), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.batchesProcessed.WithLabelValues("failure")), 0)
}

func TestPrometheusCollector_WriterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordWriterOperation("sqlite", "fill", 0.002, true)
	p.RecordWriterOperation("sqlite", "fill", 0.004, false)
	p.RecordBytesWritten("sqlite", 128)

	require.InDelta(t, 1.0, testutil.ToFloat64(p.writerOps.WithLabelValues("sqlite", "fill", "true")), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.writerOps.WithLabelValues("sqlite", "fill", "false")), 0)
	require.InDelta(t, 128.0, testutil.ToFloat64(p.writerBytes.WithLabelValues("sqlite")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "test_writer_operation_duration_seconds")
	require.Contains(t, names, "test_writer_operations_total")
}
