package types

import (
	"context"

	"github.com/arloliu/patchwork/index"
	"github.com/arloliu/patchwork/ndarray"
)

// Buffer is a subject-sized accumulation region.
//
// The default implementation is *ndarray.Array; storage-backed buffers forward
// writes to a Writer entry instead of holding data in memory.
type Buffer interface {
	// Shape returns the buffer's full shape.
	Shape() []int

	// Assign writes src into the region selected by expr.
	Assign(expr index.Expression, src *ndarray.Array) error
}

var _ Buffer = (*ndarray.Array)(nil)

// Allocator materializes a zero-initialized buffer for a new subject.
//
// The assembler calls it once per prediction key when a subject's first patch
// arrives. Allocators must return a buffer whose Shape equals shape.
//
// Parameters:
//   - shape: Full output shape, including any inferred channel axis
//   - key: Prediction key the buffer accumulates, empty for bare predictions
type Allocator func(shape []int, key string) (Buffer, error)

// SubjectAllocator is an Allocator that also receives the subject id, for
// strategies that name storage after the subject.
type SubjectAllocator[K comparable] func(id K, shape []int, key string) (Buffer, error)

// Writer persists assembled outputs.
//
// Writers follow an open → (reserve, fill, write)* → close lifecycle. Entries
// are addressed by name; Reserve creates a zero-filled entry that Fill then
// updates region by region, while Write replaces an entry wholesale.
type Writer interface {
	// Open acquires the underlying storage handle.
	Open(ctx context.Context) error

	// Close releases the storage handle, committing pending data.
	Close(ctx context.Context) error

	// Reserve creates a zero-filled entry of the given shape.
	Reserve(ctx context.Context, entry string, shape []int) error

	// Fill writes data into the region of entry selected by expr.
	// A nil expr selects the whole entry.
	Fill(ctx context.Context, entry string, data *ndarray.Array, expr index.Expression) error

	// Write stores data as entry, replacing any previous content.
	Write(ctx context.Context, entry string, data *ndarray.Array) error
}

// Reader reads entries back from storage.
type Reader interface {
	// Read returns the entry's content.
	Read(ctx context.Context, entry string) (*ndarray.Array, error)
}
