package patchwork

import "github.com/arloliu/patchwork/types"

// Option configures a SubjectAssembler with optional dependencies.
type Option func(*assemblerOptions)

// assemblerOptions holds optional SubjectAssembler configuration.
type assemblerOptions struct {
	allocator        Allocator
	subjectAllocator any // types.SubjectAllocator[K] of the assembler's K
	metrics          MetricsCollector
	logger           Logger
}

// WithAllocator sets the allocation strategy for new subject accumulators.
//
// Parameters:
//   - alloc: Allocator returning a zero-initialized buffer of the requested shape
//
// Returns:
//   - Option: Functional option for NewSubjectAssembler
//
// Example:
//
//	asm := patchwork.NewSubjectAssembler[int](patchwork.WithAllocator(func(shape []int, _ string) (patchwork.Buffer, error) {
//	    return ndarray.Zeros(shape...), nil
//	}))
func WithAllocator(alloc Allocator) Option {
	return func(o *assemblerOptions) {
		o.allocator = alloc
	}
}

// WithSubjectAllocator sets a subject-aware allocation strategy. It takes
// precedence over WithAllocator. K must match the assembler's id type,
// otherwise the option is ignored and a warning is logged.
//
// Parameters:
//   - alloc: SubjectAllocator for the assembler's subject id type
//
// Returns:
//   - Option: Functional option for NewSubjectAssembler
//
// Example:
//
//	alloc := writer.BackedAllocator[int](ctx, w, writer.SubjectEntries("run-1/"))
//	asm := patchwork.NewSubjectAssembler[int](patchwork.WithSubjectAllocator(alloc))
func WithSubjectAllocator[K comparable](alloc types.SubjectAllocator[K]) Option {
	return func(o *assemblerOptions) {
		o.subjectAllocator = alloc
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewSubjectAssembler
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *assemblerOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewSubjectAssembler
//
// Example:
//
//	asm := patchwork.NewSubjectAssembler[string](patchwork.WithLogger(logging.NewSlogDefault()))
func WithLogger(logger Logger) Option {
	return func(o *assemblerOptions) {
		o.logger = logger
	}
}
