package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/patchwork"
	"github.com/arloliu/patchwork/index"
	"github.com/arloliu/patchwork/internal/logger"
	"github.com/arloliu/patchwork/ndarray"
	"github.com/arloliu/patchwork/types"
	"github.com/arloliu/patchwork/writer"
)

const (
	rowsPerSubject = 4
	width          = 3
)

// makeBatches cuts subjects into single-row patches, delivered subject by
// subject, and groups them into batches of batchSize. Row r of subject s
// holds s*100+r in every column.
func makeBatches(t *testing.T, subjects, batchSize int) []Batch[int] {
	t.Helper()

	type patch struct{ subject, row int }
	var patches []patch
	for s := range subjects {
		for r := range rowsPerSubject {
			patches = append(patches, patch{s, r})
		}
	}

	var batches []Batch[int]
	for start := 0; start < len(patches); start += batchSize {
		end := min(start+batchSize, len(patches))
		chunk := patches[start:end]

		data := make([]float64, 0, len(chunk)*width)
		meta := patchwork.Metadata[int]{}
		for _, p := range chunk {
			for range width {
				data = append(data, float64(p.subject*100+p.row))
			}
			meta.SubjectIndex = append(meta.SubjectIndex, p.subject)
			meta.IndexExpr = append(meta.IndexExpr, index.Bounds([2]int{p.row, p.row + 1}))
			meta.Shape = append(meta.Shape, []int{rowsPerSubject, width})
		}
		arr, err := ndarray.New([]int{len(chunk), 1, width}, data)
		require.NoError(t, err)

		batches = append(batches, Batch[int]{
			Seq:         uint64(len(batches)), //nolint:gosec // small test counts
			Predictions: patchwork.Single(arr),
			Metadata:    meta,
			Last:        end == len(patches),
		})
	}

	return batches
}

func requireSubject(t *testing.T, w *writer.Memory, entry string, subject int) {
	t.Helper()

	arr, ok := w.Get(entry)
	require.True(t, ok, "entry %s missing", entry)
	require.Equal(t, []int{rowsPerSubject, width}, arr.Shape())
	for r := range rowsPerSubject {
		for c := range width {
			require.Equal(t, float64(subject*100+r), arr.At(r, c), "entry %s row %d", entry, r)
		}
	}
}

func newMemoryPipeline(t *testing.T, cfg patchwork.PipelineConfig, opts ...Option) (*Pipeline[int], *writer.Memory) {
	t.Helper()

	w := writer.NewMemory()
	require.NoError(t, w.Open(context.Background()))

	asm := patchwork.NewSubjectAssembler[int](patchwork.WithLogger(logger.NewTest(t)))
	p, err := New(asm, w, cfg, append([]Option{WithLogger(logger.NewTest(t))}, opts...)...)
	require.NoError(t, err)

	return p, w
}

func TestPipeline_ParallelProducers(t *testing.T) {
	defer goleak.VerifyNone(t)

	const (
		subjects  = 6
		producers = 4
	)
	batches := makeBatches(t, subjects, 3)

	var mu sync.Mutex
	written := map[string][]string{}
	hooks := &types.Hooks{
		OnSubjectWritten: func(_ context.Context, subject string, entries []string) error {
			mu.Lock()
			defer mu.Unlock()
			written[subject] = append(written[subject], entries...)

			return nil
		},
	}

	p, w := newMemoryPipeline(t, patchwork.PipelineConfig{
		QueueCapacity: 2,
		ReorderWindow: len(batches),
		EntryPrefix:   "run/",
	}, WithHooks(hooks))

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return p.Run(ctx) })

	var producersDone sync.WaitGroup
	for i := range producers {
		producersDone.Add(1)
		g.Go(func() error {
			defer producersDone.Done()
			// Each producer submits every producers-th batch, in reverse to
			// force reordering.
			for j := len(batches) - 1; j >= 0; j-- {
				if j%producers != i {
					continue
				}
				if err := p.Submit(ctx, batches[j]); err != nil {
					return err
				}
			}

			return nil
		})
	}
	g.Go(func() error {
		producersDone.Wait()
		p.Close()

		return nil
	})

	require.NoError(t, g.Wait())

	require.Len(t, written, subjects)
	for s := range subjects {
		entries := written[fmt.Sprint(s)]
		require.Equal(t, []string{fmt.Sprintf("run/%d", s)}, entries, "subject %d written exactly once", s)
		requireSubject(t, w, entries[0], s)
	}
	require.Len(t, w.Entries(), subjects)
}

func TestPipeline_WritesSubjectsEagerly(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, w := newMemoryPipeline(t, patchwork.PipelineConfig{QueueCapacity: 4, ReorderWindow: 4})
	batches := makeBatches(t, 3, rowsPerSubject)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// Subject 0 completes as soon as subject 1's first batch is processed.
	require.NoError(t, p.Submit(ctx, batches[0]))
	require.NoError(t, p.Submit(ctx, batches[1]))
	require.Eventually(t, func() bool {
		_, ok := w.Get("0")
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	_, ok := w.Get("1")
	require.False(t, ok, "subject 1 is still accumulating")

	require.NoError(t, p.Submit(ctx, batches[2]))
	p.Close()
	require.NoError(t, <-done)

	require.Equal(t, []string{"0", "1", "2"}, w.Entries())
	requireSubject(t, w, "2", 2)
}

func TestPipeline_Backpressure(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, _ := newMemoryPipeline(t, patchwork.PipelineConfig{QueueCapacity: 1, ReorderWindow: 4})
	batches := makeBatches(t, 1, 2)

	require.NoError(t, p.Submit(context.Background(), batches[0]))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, batches[1])
	require.ErrorIs(t, err, context.DeadlineExceeded)

	p.Close()
	require.ErrorIs(t, p.Submit(context.Background(), batches[1]), types.ErrPipelineClosed)
}

func TestPipeline_BlockedProducerReleasedByClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, _ := newMemoryPipeline(t, patchwork.PipelineConfig{QueueCapacity: 1, ReorderWindow: 4})
	batches := makeBatches(t, 1, 2)
	require.NoError(t, p.Submit(context.Background(), batches[0]))

	errCh := make(chan error, 1)
	go func() { errCh <- p.Submit(context.Background(), batches[1]) }()

	time.Sleep(20 * time.Millisecond)
	p.Close()
	require.ErrorIs(t, <-errCh, types.ErrPipelineClosed)
}

func TestPipeline_SequenceErrors(t *testing.T) {
	batches := makeBatches(t, 2, 1)

	tests := []struct {
		name   string
		window int
		seqs   []int
		err    error
	}{
		{name: "reorder window exceeded", window: 2, seqs: []int{1, 2, 3}, err: types.ErrReorderWindowExceeded},
		{name: "sequence gap at close", window: 4, seqs: []int{0, 2}, err: types.ErrSequenceGap},
		{name: "duplicate pending", window: 4, seqs: []int{2, 2}, err: types.ErrDuplicateSequence},
		{name: "duplicate processed", window: 4, seqs: []int{0, 0}, err: types.ErrDuplicateSequence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			var hookErr atomic.Value
			p, _ := newMemoryPipeline(t, patchwork.PipelineConfig{QueueCapacity: 8, ReorderWindow: tt.window},
				WithHooks(&types.Hooks{OnError: func(_ context.Context, err error) error {
					hookErr.Store(err)
					return nil
				}}))

			for _, seq := range tt.seqs {
				require.NoError(t, p.Submit(context.Background(), batches[seq]))
			}
			p.Close()

			err := p.Run(context.Background())
			require.ErrorIs(t, err, tt.err)
			require.ErrorIs(t, hookErr.Load().(error), tt.err)
		})
	}
}

func TestPipeline_AssemblerErrorStopsRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, _ := newMemoryPipeline(t, patchwork.PipelineConfig{QueueCapacity: 4, ReorderWindow: 4})
	batch := makeBatches(t, 1, 1)[0]
	batch.Metadata.Shape = nil

	require.NoError(t, p.Submit(context.Background(), batch))
	p.Close()

	err := p.Run(context.Background())
	require.ErrorIs(t, err, patchwork.ErrMissingMetadata)
}

func TestPipeline_ContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, _ := newMemoryPipeline(t, patchwork.PipelineConfig{QueueCapacity: 4, ReorderWindow: 4})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.ErrorIs(t, p.Submit(context.Background(), Batch[int]{}), types.ErrPipelineClosed)
}

func TestPipeline_RunTwice(t *testing.T) {
	p, _ := newMemoryPipeline(t, patchwork.PipelineConfig{QueueCapacity: 1, ReorderWindow: 1})
	p.Close()

	require.NoError(t, p.Run(context.Background()))
	require.Error(t, p.Run(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	asm := patchwork.NewSubjectAssembler[int]()
	w := writer.NewMemory()

	_, err := New(asm, w, patchwork.PipelineConfig{QueueCapacity: 0, ReorderWindow: 1})
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = New[int](nil, w, patchwork.PipelineConfig{QueueCapacity: 1, ReorderWindow: 1})
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestPipeline_BackedAccumulation(t *testing.T) {
	ctx := context.Background()
	batches := makeBatches(t, 3, 5)

	w := writer.NewSQLite(filepath.Join(t.TempDir(), "subjects.db"))
	err := writer.With(ctx, w, func(tw types.Writer) error {
		alloc := writer.BackedAllocator[int](ctx, tw, writer.SubjectEntries("backed/"))
		asm := patchwork.NewSubjectAssembler[int](patchwork.WithSubjectAllocator(alloc))

		p, err := New(asm, tw, patchwork.PipelineConfig{QueueCapacity: 2, ReorderWindow: 8})
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return p.Run(gctx) })
		g.Go(func() error {
			defer p.Close()
			for _, b := range batches {
				if err := p.Submit(gctx, b); err != nil {
					return err
				}
			}

			return nil
		})

		return g.Wait()
	})
	require.NoError(t, err)

	require.NoError(t, w.Open(ctx))
	defer func() { _ = w.Close(ctx) }()

	names, err := w.Entries(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"backed/0", "backed/1", "backed/2"}, names)

	arr, err := w.Read(ctx, "backed/1")
	require.NoError(t, err)
	require.Equal(t, 103.0, arr.At(3, 2))
}

type failingWriter struct {
	*writer.Memory
}

func (f failingWriter) Write(context.Context, string, *ndarray.Array) error {
	return errors.New("disk full")
}

func TestPipeline_WriterErrorStopsRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	mem := writer.NewMemory()
	require.NoError(t, mem.Open(context.Background()))
	asm := patchwork.NewSubjectAssembler[int]()
	p, err := New(asm, failingWriter{mem}, patchwork.PipelineConfig{QueueCapacity: 4, ReorderWindow: 4})
	require.NoError(t, err)

	for _, b := range makeBatches(t, 1, 4) {
		require.NoError(t, p.Submit(context.Background(), b))
	}
	p.Close()

	err = p.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
}

func TestPipeline_KeyedEntries(t *testing.T) {
	defer goleak.VerifyNone(t)

	var entries []string
	p, w := newMemoryPipeline(t, patchwork.PipelineConfig{QueueCapacity: 2, ReorderWindow: 2, EntryPrefix: "k/"},
		WithHooks(&types.Hooks{OnSubjectWritten: func(_ context.Context, _ string, e []string) error {
			entries = append(entries, e...)
			return nil
		}}))

	mask, err := ndarray.New([]int{2, 1, 2}, []float64{1, 1, 2, 2})
	require.NoError(t, err)
	score, err := ndarray.New([]int{2, 1, 2}, []float64{0.5, 0.5, 0.75, 0.75})
	require.NoError(t, err)

	require.NoError(t, p.Submit(context.Background(), Batch[int]{
		Predictions: patchwork.Keyed(map[string]*ndarray.Array{"mask": mask, "score": score}),
		Metadata: patchwork.Metadata[int]{
			SubjectIndex: []int{7, 7},
			IndexExpr:    []index.Source{index.Bounds([2]int{0, 1}), index.Bounds([2]int{1, 2})},
			Shape:        [][]int{{2, 2}, {2, 2}},
		},
		Last: true,
	}))
	p.Close()
	require.NoError(t, p.Run(context.Background()))

	require.Equal(t, []string{"k/7/mask", "k/7/score"}, entries)
	got, ok := w.Get("k/7/mask")
	require.True(t, ok)
	require.Equal(t, []float64{1, 1, 2, 2}, got.Data())
	got, ok = w.Get("k/7/score")
	require.True(t, ok)
	require.Equal(t, []int{2, 2}, got.Shape())
	require.Equal(t, []float64{0.5, 0.5, 0.75, 0.75}, got.Data())
}
