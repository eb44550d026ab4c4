package pipeline

import (
	"github.com/arloliu/patchwork/types"
	"github.com/arloliu/patchwork/writer"
)

// Option configures a Pipeline with optional dependencies.
type Option func(*pipelineOptions)

type pipelineOptions struct {
	logger  types.Logger
	metrics types.MetricsCollector
	hooks   *types.Hooks
	namer   writer.EntryNamer
}

// WithLogger sets a logger.
func WithLogger(logger types.Logger) Option {
	return func(o *pipelineOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
func WithMetrics(metrics types.MetricsCollector) Option {
	return func(o *pipelineOptions) {
		o.metrics = metrics
	}
}

// WithHooks sets event hooks. Nil callbacks are replaced with no-ops.
//
// Example:
//
//	hooks := &types.Hooks{
//	    OnSubjectWritten: func(ctx context.Context, subject string, entries []string) error {
//	        log.Printf("stored %s as %v", subject, entries)
//	        return nil
//	    },
//	}
//	p, err := pipeline.New(asm, w, cfg.Pipeline, pipeline.WithHooks(hooks))
func WithHooks(hooks *types.Hooks) Option {
	return func(o *pipelineOptions) {
		o.hooks = hooks
	}
}

// WithEntryNamer overrides the writer entry naming. The default is
// writer.SubjectEntries with the configured entry prefix.
func WithEntryNamer(namer writer.EntryNamer) Option {
	return func(o *pipelineOptions) {
		o.namer = namer
	}
}
