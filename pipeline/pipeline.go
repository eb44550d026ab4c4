// Package pipeline feeds a SubjectAssembler from parallel batch producers and
// stores completed subjects.
//
// Producers Submit batches tagged with consecutive sequence numbers starting
// at zero. A single consumer, Run, restores sequence order, adds each batch to
// the assembler and writes every subject as soon as it is ready. The
// assembler itself is only ever touched by the consumer goroutine.
//
//	p, err := pipeline.New(asm, w, cfg.Pipeline)
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(func() error { return p.Run(ctx) })
//	for i := range producers {
//	    g.Go(func() error { return produce(ctx, p, i) })
//	}
//	// after all producers are done: p.Close()
package pipeline

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/arloliu/patchwork"
	"github.com/arloliu/patchwork/internal/hooks"
	"github.com/arloliu/patchwork/internal/logger"
	"github.com/arloliu/patchwork/internal/metrics"
	"github.com/arloliu/patchwork/ndarray"
	"github.com/arloliu/patchwork/types"
	"github.com/arloliu/patchwork/writer"
)

// Batch is one unit of work submitted by a producer.
type Batch[K comparable] struct {
	// Seq is the batch's position in delivery order, starting at zero.
	Seq uint64

	// Predictions are the model outputs of the batch.
	Predictions patchwork.Predictions

	// Metadata locates every patch of the batch.
	Metadata patchwork.Metadata[K]

	// Last marks the final batch of the run.
	Last bool
}

// Pipeline serializes batches into a SubjectAssembler and drains completed
// subjects into a writer.
type Pipeline[K comparable] struct {
	asm    *patchwork.SubjectAssembler[K]
	w      types.Writer
	namer  writer.EntryNamer
	window int

	logger  types.Logger
	metrics types.MetricsCollector
	hooks   types.Hooks

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	queue    *queue.Queue
	capacity int
	closed   bool
	running  bool
}

// New creates a pipeline around asm. w must be open while Run executes.
//
// Parameters:
//   - asm: Assembler owned by the pipeline from now on
//   - w: Writer receiving completed subjects
//   - cfg: Queue capacity, reorder window and entry prefix
//   - opts: Optional logger, metrics, hooks and entry naming
//
// Returns:
//   - *Pipeline[K]: Pipeline ready for Submit and Run
//   - error: ErrInvalidConfig if capacity or window are not positive
func New[K comparable](asm *patchwork.SubjectAssembler[K], w types.Writer, cfg patchwork.PipelineConfig, opts ...Option) (*Pipeline[K], error) {
	if asm == nil || w == nil {
		return nil, fmt.Errorf("%w: assembler and writer are required", types.ErrInvalidConfig)
	}
	if cfg.QueueCapacity <= 0 || cfg.ReorderWindow <= 0 {
		return nil, fmt.Errorf("%w: queueCapacity and reorderWindow must be > 0", types.ErrInvalidConfig)
	}

	o := pipelineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.NewNop()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewNop()
	}
	h := hooks.NewNop()
	if o.hooks != nil {
		h = hooks.Fill(*o.hooks)
	}
	if o.namer == nil {
		o.namer = writer.SubjectEntries(cfg.EntryPrefix)
	}

	p := &Pipeline[K]{
		asm:      asm,
		w:        w,
		namer:    o.namer,
		window:   cfg.ReorderWindow,
		logger:   o.logger,
		metrics:  o.metrics,
		hooks:    h,
		queue:    queue.New(),
		capacity: cfg.QueueCapacity,
	}
	p.notEmpty = sync.NewCond(&p.mu)
	p.notFull = sync.NewCond(&p.mu)

	return p, nil
}

// Submit enqueues a batch, blocking while the queue is full.
//
// Submit is safe for concurrent use by multiple producers.
//
// Returns:
//   - error: ErrPipelineClosed after Close or once Run has stopped, or the
//     context error if ctx ends while waiting for room
func (p *Pipeline[K]) Submit(ctx context.Context, b Batch[K]) error {
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.notFull.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	for !p.closed && p.queue.Length() >= p.capacity && ctx.Err() == nil {
		p.notFull.Wait()
	}
	if p.closed {
		return types.ErrPipelineClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.queue.Add(b)
	p.metrics.RecordBatchSubmitted()
	p.metrics.SetQueueDepth(p.queue.Length())
	p.notEmpty.Signal()

	return nil
}

// Close stops accepting batches. Run processes what is queued and returns.
func (p *Pipeline[K]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.notEmpty.Broadcast()
	p.notFull.Broadcast()
}

// Run consumes batches until Close is called and the queue is drained, or
// until ctx ends or a batch fails. Run must be called once.
//
// When the input ends cleanly every remaining subject is flushed and written.
//
// Returns:
//   - error: nil after a clean end of input; ErrSequenceGap if batches were
//     missing at Close; ErrReorderWindowExceeded, ErrDuplicateSequence,
//     assembler or writer errors otherwise
func (p *Pipeline[K]) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already running")
	}
	p.running = true
	p.mu.Unlock()

	// Wake blocked producers on every exit path.
	defer p.Close()

	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.notEmpty.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	var next uint64
	pending := make(map[uint64]Batch[K])

	for {
		b, ok, err := p.take(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		if _, dup := pending[b.Seq]; dup || b.Seq < next {
			return p.fail(ctx, fmt.Errorf("%w: %d", types.ErrDuplicateSequence, b.Seq))
		}
		pending[b.Seq] = b
		if len(pending) > p.window {
			return p.fail(ctx, fmt.Errorf("%w: %d batches waiting for sequence %d",
				types.ErrReorderWindowExceeded, len(pending), next))
		}

		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if err := p.process(ctx, ready); err != nil {
				return err
			}
		}
		p.metrics.SetReorderPending(len(pending))
	}

	if len(pending) > 0 {
		return p.fail(ctx, fmt.Errorf("%w: sequence %d never arrived, %d later batches dropped",
			types.ErrSequenceGap, next, len(pending)))
	}

	p.asm.Flush()
	if err := p.drain(ctx); err != nil {
		return err
	}
	p.logger.Debug("pipeline finished", "batches", next)

	return nil
}

// take removes the next queued batch. ok is false once the pipeline is closed
// and empty.
func (p *Pipeline[K]) take(ctx context.Context) (Batch[K], bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.queue.Length() == 0 && !p.closed && ctx.Err() == nil {
		p.notEmpty.Wait()
	}
	if err := ctx.Err(); err != nil {
		return Batch[K]{}, false, err
	}
	if p.queue.Length() == 0 {
		return Batch[K]{}, false, nil
	}

	b, _ := p.queue.Remove().(Batch[K])
	p.metrics.SetQueueDepth(p.queue.Length())
	p.notFull.Signal()

	return b, true, nil
}

// process adds one in-order batch and writes the subjects it completed.
func (p *Pipeline[K]) process(ctx context.Context, b Batch[K]) error {
	err := p.asm.Add(b.Predictions, b.Metadata, b.Last)
	p.metrics.RecordBatchProcessed(err == nil)
	if err != nil {
		return p.fail(ctx, fmt.Errorf("batch %d: %w", b.Seq, err))
	}

	return p.drain(ctx)
}

// drain retrieves and stores every ready subject.
func (p *Pipeline[K]) drain(ctx context.Context) error {
	for _, id := range p.asm.Ready() {
		out, err := p.asm.GetAssembled(id)
		if err != nil {
			return p.fail(ctx, err)
		}

		subject := fmt.Sprint(id)
		start := time.Now()
		entries, err := p.store(ctx, subject, out)
		if err != nil {
			return p.fail(ctx, fmt.Errorf("store subject %s: %w", subject, err))
		}
		p.logger.Debug("subject written",
			"subject", subject,
			"entries", len(entries),
			"duration", time.Since(start),
		)

		if err := p.hooks.OnSubjectWritten(ctx, subject, entries); err != nil {
			p.logger.Warn("OnSubjectWritten hook failed", "subject", subject, "error", err)
		}
	}

	return nil
}

// store persists an assembled subject and returns its entry names.
func (p *Pipeline[K]) store(ctx context.Context, subject string, out patchwork.Assembled) ([]string, error) {
	buffers := out.Entries()
	entries := make([]string, 0, len(buffers))

	for _, key := range slices.Sorted(maps.Keys(buffers)) {
		switch buf := buffers[key].(type) {
		case *writer.Backed:
			if err := buf.Commit(ctx); err != nil {
				return entries, err
			}
			entries = append(entries, buf.Entry())
		case *ndarray.Array:
			entry := p.namer(subject, key)
			if err := p.w.Write(ctx, entry, buf); err != nil {
				return entries, err
			}
			entries = append(entries, entry)
		default:
			return entries, fmt.Errorf("unsupported buffer type %T for key %q", buf, key)
		}
	}

	return entries, nil
}

// fail reports err to the error hook and returns it.
func (p *Pipeline[K]) fail(ctx context.Context, err error) error {
	p.logger.Error("pipeline failed", "error", err)
	if hookErr := p.hooks.OnError(ctx, err); hookErr != nil {
		p.logger.Warn("OnError hook failed", "error", hookErr)
	}

	return err
}
