package patchwork

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/arloliu/patchwork/index"
	"github.com/arloliu/patchwork/internal/logger"
	"github.com/arloliu/patchwork/internal/metrics"
	"github.com/arloliu/patchwork/ndarray"
	"github.com/arloliu/patchwork/types"
)

// SubjectAssembler reassembles per-patch predictions into per-subject buffers.
//
// Patches of a subject are expected to arrive contiguously: the first patch of
// a subject not yet tracked marks every tracked subject ready. The final
// subjects of a run become ready through the last flag of Add or through Flush.
//
// SubjectAssembler is not safe for concurrent use. Feed it from a single
// goroutine, for example through pipeline.Pipeline.
type SubjectAssembler[K comparable] struct {
	subjects map[K]*accumulator
	ready    map[K]struct{}
	order    []K // first-seen order of tracked subjects

	alloc   types.SubjectAllocator[K]
	logger  types.Logger
	metrics types.MetricsCollector
}

// accumulator holds the buffers of one subject. Its shape and key set are
// fixed at allocation.
type accumulator struct {
	buffers map[string]types.Buffer
	keyed   bool
}

// NewSubjectAssembler creates an empty assembler.
//
// Without WithAllocator, accumulators are zero-filled in-memory ndarray buffers.
//
// Parameters:
//   - opts: Optional configuration (WithAllocator, WithLogger, WithMetrics)
//
// Returns:
//   - *SubjectAssembler[K]: Ready-to-use assembler
//
// Example:
//
//	asm := patchwork.NewSubjectAssembler[int]()
//	err := asm.Add(patchwork.Single(pred), meta, isLast)
//	for _, id := range asm.Ready() {
//	    out, _ := asm.GetAssembled(id)
//	    save(id, out.Buffer())
//	}
func NewSubjectAssembler[K comparable](opts ...Option) *SubjectAssembler[K] {
	o := assemblerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.allocator == nil {
		o.allocator = ZeroAllocator
	}
	if o.logger == nil {
		o.logger = logger.NewNop()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewNop()
	}

	alloc := func(_ K, shape []int, key string) (types.Buffer, error) {
		return o.allocator(shape, key)
	}
	if o.subjectAllocator != nil {
		if fn, ok := o.subjectAllocator.(types.SubjectAllocator[K]); ok {
			alloc = fn
		} else {
			o.logger.Warn("subject allocator ignored: id type does not match the assembler",
				"allocator", fmt.Sprintf("%T", o.subjectAllocator))
		}
	}

	return &SubjectAssembler[K]{
		subjects: make(map[K]*accumulator),
		ready:    make(map[K]struct{}),
		alloc:    alloc,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// ZeroAllocator is the default allocation strategy: a zero-filled in-memory
// array of the requested shape. The key is ignored.
//
// Allocators receive an empty key for subjects fed bare predictions.
func ZeroAllocator(shape []int, _ string) (types.Buffer, error) {
	if err := ndarray.ValidateShape(shape); err != nil {
		return nil, err
	}

	return ndarray.Zeros(shape...), nil
}

// Add writes one batch of patch predictions into their subjects' accumulators.
//
// The batch is validated as a whole before any state changes: all metadata
// fields must be present, the predictions non-empty, batch sizes consistent
// and every index expression decodable. Patches are then processed in order.
// The first patch of an untracked subject marks every tracked subject ready
// before the new subject's accumulator is allocated.
//
// Parameters:
//   - pred: Batch predictions, bare or keyed
//   - meta: Per-patch subject ids, index expressions and subject shapes
//   - last: Marks every tracked subject ready after the batch is written
//
// Returns:
//   - error: MissingMetadataError, ErrEmptyPredictions, ErrBatchSizeMismatch,
//     index.ErrMalformed, ErrAllocatorFailed or a region write error
func (a *SubjectAssembler[K]) Add(pred Predictions, meta Metadata[K], last bool) error {
	start := time.Now()

	exprs, err := a.validate(pred, meta)
	if err != nil {
		return err
	}

	keys := pred.sortedKeys()
	for i, id := range meta.SubjectIndex {
		acc, ok := a.subjects[id]
		if !ok {
			acc, err = a.allocate(id, pred, keys, meta.Shape[i], i)
			if err != nil {
				return err
			}
			if len(a.subjects) > 0 {
				a.markAllReady()
			}
			a.subjects[id] = acc
			a.order = append(a.order, id)
		}

		for _, key := range keys {
			if err := acc.buffers[key].Assign(exprs[i], pred.arrays[key].Row(i)); err != nil {
				return fmt.Errorf("subject %v, patch %d, key %q: %w", id, i, pred.displayKey(key), err)
			}
		}
	}

	if last {
		a.markAllReady()
	}

	a.metrics.RecordPatches(len(meta.SubjectIndex))
	a.metrics.SetSubjectsInFlight(len(a.subjects))
	a.metrics.RecordAddDuration(time.Since(start).Seconds())

	return nil
}

// validate checks the whole batch and returns the decoded index expressions.
func (a *SubjectAssembler[K]) validate(pred Predictions, meta Metadata[K]) ([]index.Expression, error) {
	if err := meta.checkPresent(); err != nil {
		return nil, err
	}
	if pred.Len() == 0 {
		return nil, ErrEmptyPredictions
	}

	batch, err := pred.batchSize()
	if err != nil {
		return nil, err
	}
	exprs, err := meta.resolve(batch)
	if err != nil {
		return nil, err
	}

	for i, id := range meta.SubjectIndex {
		if err := ndarray.ValidateShape(meta.Shape[i]); err != nil {
			return nil, fmt.Errorf("shape[%d]: %w", i, err)
		}
		acc, ok := a.subjects[id]
		if !ok {
			continue
		}
		if acc.keyed != pred.IsKeyed() || !sameKeys(acc.buffers, pred.arrays) {
			return nil, fmt.Errorf("%w: subject %v was allocated with keys %v, batch has %v",
				ErrKeyMismatch, id, slices.Sorted(maps.Keys(acc.buffers)), pred.sortedKeys())
		}
	}

	return exprs, nil
}

// allocate creates the accumulator of a new subject from its first patch.
func (a *SubjectAssembler[K]) allocate(id K, pred Predictions, keys []string, declared []int, i int) (*accumulator, error) {
	acc := &accumulator{buffers: make(map[string]types.Buffer, len(keys)), keyed: pred.IsKeyed()}
	for _, key := range keys {
		shape := inferShape(declared, pred.arrays[key].Shape()[1:])
		allocKey := key
		if !pred.IsKeyed() {
			allocKey = ""
		}
		buf, err := a.alloc(id, shape, allocKey)
		if err != nil {
			return nil, fmt.Errorf("%w: subject %v, key %q: %w", ErrAllocatorFailed, id, pred.displayKey(key), err)
		}
		if buf == nil || !slices.Equal(buf.Shape(), shape) {
			return nil, fmt.Errorf("%w: subject %v, key %q: allocator returned wrong shape for %v",
				ErrAllocatorFailed, id, pred.displayKey(key), shape)
		}
		acc.buffers[key] = buf
	}

	a.metrics.RecordSubjectAllocated()
	a.logger.Debug("subject allocated",
		"subject", fmt.Sprint(id),
		"shape", declared,
		"keys", len(keys),
		"patch", i,
	)

	return acc, nil
}

// inferShape appends the patch's trailing axis as a channel axis when it is
// larger than one and differs from the declared trailing dimension.
func inferShape(declared, patch []int) []int {
	shape := slices.Clone(declared)
	if len(patch) == 0 {
		return shape
	}

	channels := patch[len(patch)-1]
	if channels > 1 && (len(declared) == 0 || declared[len(declared)-1] != channels) {
		shape = append(shape, channels)
	}

	return shape
}

// markAllReady marks every tracked subject ready.
func (a *SubjectAssembler[K]) markAllReady() {
	added := 0
	for id := range a.subjects {
		if _, ok := a.ready[id]; !ok {
			a.ready[id] = struct{}{}
			added++
		}
	}
	if added == 0 {
		return
	}

	a.metrics.RecordSubjectsReady(added)
	a.logger.Debug("subjects ready", "added", added, "ready", len(a.ready))
}

// GetAssembled removes a subject from the assembler and returns its buffers.
//
// The subject does not have to be marked ready: callers that know a subject is
// complete through other means may retrieve it directly. Each subject can be
// retrieved once.
//
// Parameters:
//   - id: Subject identifier
//
// Returns:
//   - Assembled: The subject's buffers
//   - error: UnknownSubjectError if the subject was never seen or already retrieved
func (a *SubjectAssembler[K]) GetAssembled(id K) (Assembled, error) {
	acc, ok := a.subjects[id]
	if !ok {
		return Assembled{}, &UnknownSubjectError{ID: id}
	}

	delete(a.ready, id)
	delete(a.subjects, id)
	if i := slices.Index(a.order, id); i >= 0 {
		a.order = slices.Delete(a.order, i, i+1)
	}

	a.metrics.RecordSubjectRetrieved()
	a.metrics.SetSubjectsInFlight(len(a.subjects))

	return Assembled{buffers: acc.buffers, keyed: acc.keyed}, nil
}

// Ready returns the subjects ready for retrieval in first-seen order.
func (a *SubjectAssembler[K]) Ready() []K {
	out := make([]K, 0, len(a.ready))
	for _, id := range a.order {
		if _, ok := a.ready[id]; ok {
			out = append(out, id)
		}
	}

	return out
}

// IsReady reports whether the subject is marked ready.
func (a *SubjectAssembler[K]) IsReady(id K) bool {
	_, ok := a.ready[id]

	return ok
}

// State returns the subject's lifecycle state.
//
// Retrieved subjects are forgotten and report SubjectUnseen. A later patch
// carrying a retrieved id starts a new accumulator for it.
func (a *SubjectAssembler[K]) State(id K) SubjectState {
	if _, ok := a.subjects[id]; !ok {
		return SubjectUnseen
	}
	if a.IsReady(id) {
		return SubjectReady
	}

	return SubjectAccumulating
}

// InFlight returns the number of subjects seen but not yet retrieved.
func (a *SubjectAssembler[K]) InFlight() int {
	return len(a.subjects)
}

// Flush marks every tracked subject ready. It has the effect of an Add call
// with an empty batch and the last flag set.
func (a *SubjectAssembler[K]) Flush() {
	a.markAllReady()
}

func sameKeys(buffers map[string]types.Buffer, arrays map[string]*ndarray.Array) bool {
	if len(buffers) != len(arrays) {
		return false
	}
	for key := range arrays {
		if _, ok := buffers[key]; !ok {
			return false
		}
	}

	return true
}
