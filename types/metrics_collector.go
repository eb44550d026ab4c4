package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// Pipeline and writer methods may be called from several goroutines and must
// be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	AssemblerMetrics
	PipelineMetrics
	WriterMetrics
}

// AssemblerMetrics defines metrics for subject assembly.
type AssemblerMetrics interface {
	// RecordPatches records patches written into accumulators.
	//
	// Parameters:
	//   - count: Number of patches in the processed batch
	RecordPatches(count int)

	// RecordSubjectAllocated records the allocation of a new subject accumulator.
	RecordSubjectAllocated()

	// RecordSubjectsReady records subjects transitioning to ready.
	//
	// Parameters:
	//   - count: Number of subjects newly marked ready
	RecordSubjectsReady(count int)

	// RecordSubjectRetrieved records a successful retrieval of an assembled subject.
	RecordSubjectRetrieved()

	// SetSubjectsInFlight sets the number of live accumulators (gauge metric).
	SetSubjectsInFlight(count int)

	// RecordAddDuration records the time taken to process one batch.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	RecordAddDuration(duration float64)
}

// PipelineMetrics defines metrics for the batch pipeline.
type PipelineMetrics interface {
	// RecordBatchSubmitted records a batch accepted from a producer.
	RecordBatchSubmitted()

	// SetQueueDepth sets the number of queued batches (gauge metric).
	SetQueueDepth(depth int)

	// SetReorderPending sets the number of batches waiting for an earlier sequence (gauge metric).
	SetReorderPending(count int)

	// RecordBatchProcessed records a batch handed to the assembler.
	//
	// Parameters:
	//   - success: true if the assembler accepted the batch
	RecordBatchProcessed(success bool)
}

// WriterMetrics defines metrics for storage writers.
type WriterMetrics interface {
	// RecordWriterOperation records a storage operation.
	//
	// Parameters:
	//   - backend: Writer backend ("memory", "sqlite", "nats")
	//   - operation: Operation type ("reserve", "fill", "write", "read", "close")
	//   - duration: Time taken in seconds
	//   - success: true if the operation succeeded
	RecordWriterOperation(backend, operation string, duration float64, success bool)

	// RecordBytesWritten records encoded bytes persisted by a backend.
	RecordBytesWritten(backend string, n int)
}
