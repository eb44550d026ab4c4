package writer

import (
	"context"
	"fmt"
	"slices"

	"github.com/arloliu/patchwork/index"
	"github.com/arloliu/patchwork/ndarray"
	"github.com/arloliu/patchwork/types"
)

// Committer is implemented by writers that stage entries and put them later.
type Committer interface {
	// Commit makes the staged content of entry durable.
	Commit(ctx context.Context, entry string) error
}

// Backed is an accumulator buffer that lives in a writer entry.
//
// Assign forwards to Writer.Fill, so patches are accumulated in storage and
// never held in memory as a whole subject.
type Backed struct {
	ctx   context.Context //nolint:containedctx // Assign has no context parameter
	w     types.Writer
	entry string
	shape []int
}

var _ types.Buffer = (*Backed)(nil)

// NewBacked reserves entry in w and returns a buffer writing into it.
func NewBacked(ctx context.Context, w types.Writer, entry string, shape []int) (*Backed, error) {
	if err := w.Reserve(ctx, entry, shape); err != nil {
		return nil, fmt.Errorf("reserve %q: %w", entry, err)
	}

	return &Backed{ctx: ctx, w: w, entry: entry, shape: slices.Clone(shape)}, nil
}

// Shape returns the entry's shape.
func (b *Backed) Shape() []int {
	return slices.Clone(b.shape)
}

// Assign fills the region of the entry selected by expr.
func (b *Backed) Assign(expr index.Expression, src *ndarray.Array) error {
	return b.w.Fill(b.ctx, b.entry, src, expr)
}

// Entry returns the writer entry name.
func (b *Backed) Entry() string {
	return b.entry
}

// Commit makes the entry durable when the writer stages entries.
func (b *Backed) Commit(ctx context.Context) error {
	if c, ok := b.w.(Committer); ok {
		return c.Commit(ctx, b.entry)
	}

	return nil
}

// Read returns the entry's current content when the writer can read.
func (b *Backed) Read(ctx context.Context) (*ndarray.Array, error) {
	r, ok := b.w.(types.Reader)
	if !ok {
		return nil, fmt.Errorf("writer %T cannot read entries", b.w)
	}

	return r.Read(ctx, b.entry)
}

// BackedAllocator returns an allocation strategy that reserves one writer
// entry per subject and key, named by namer.
//
// Parameters:
//   - ctx: Context used for Reserve and every later Fill
//   - w: Open writer holding the entries
//   - namer: Entry naming, e.g. SubjectEntries("run-1/")
//
// Returns:
//   - types.SubjectAllocator[K]: Allocator for patchwork.WithSubjectAllocator
//
// Example:
//
//	alloc := writer.BackedAllocator[string](ctx, w, writer.SubjectEntries(""))
//	asm := patchwork.NewSubjectAssembler[string](patchwork.WithSubjectAllocator(alloc))
func BackedAllocator[K comparable](ctx context.Context, w types.Writer, namer EntryNamer) types.SubjectAllocator[K] {
	return func(id K, shape []int, key string) (types.Buffer, error) {
		return NewBacked(ctx, w, namer(fmt.Sprint(id), key), shape)
	}
}
