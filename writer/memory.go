package writer

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/patchwork/index"
	"github.com/arloliu/patchwork/ndarray"
	"github.com/arloliu/patchwork/types"
)

const backendMemory = "memory"

// Memory is an in-process writer.
//
// Fill updates an entry in place. Get and Read copy the entry under the same
// lock, so they never observe a partially written region. Entries survive
// Close and are visible again after a new Open.
type Memory struct {
	entries *xsync.Map[string, *ndarray.Array]
	mu      sync.Mutex // guards entry contents
	open    atomic.Bool
	opts    options
}

var (
	_ types.Writer = (*Memory)(nil)
	_ types.Reader = (*Memory)(nil)
)

// NewMemory creates an empty in-memory writer.
func NewMemory(opts ...Option) *Memory {
	return &Memory{
		entries: xsync.NewMap[string, *ndarray.Array](),
		opts:    newOptions(opts),
	}
}

// Open marks the writer open.
func (m *Memory) Open(_ context.Context) error {
	m.open.Store(true)

	return nil
}

// Close marks the writer closed. Stored entries are kept.
func (m *Memory) Close(_ context.Context) error {
	m.open.Store(false)

	return nil
}

// Reserve stores a zero-filled entry.
func (m *Memory) Reserve(_ context.Context, entry string, shape []int) error {
	start := time.Now()

	err := func() error {
		if !m.open.Load() {
			return types.ErrWriterNotOpen
		}
		if err := ndarray.ValidateShape(shape); err != nil {
			return err
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		m.entries.Store(entry, ndarray.Zeros(shape...))

		return nil
	}()

	return m.opts.observe(backendMemory, "reserve", entry, start, err)
}

// Fill writes data into the region of entry selected by expr.
func (m *Memory) Fill(_ context.Context, entry string, data *ndarray.Array, expr index.Expression) error {
	start := time.Now()

	err := func() error {
		if !m.open.Load() {
			return types.ErrWriterNotOpen
		}
		m.mu.Lock()
		defer m.mu.Unlock()

		cur, ok := m.entries.Load(entry)
		if !ok {
			return fmt.Errorf("%w: %q", types.ErrEntryNotFound, entry)
		}

		return cur.Assign(expr, data)
	}()

	return m.opts.observe(backendMemory, "fill", entry, start, err)
}

// Write stores a copy of data as entry.
func (m *Memory) Write(_ context.Context, entry string, data *ndarray.Array) error {
	start := time.Now()

	err := func() error {
		if !m.open.Load() {
			return types.ErrWriterNotOpen
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		m.entries.Store(entry, data.Clone())

		return nil
	}()

	return m.opts.observe(backendMemory, "write", entry, start, err)
}

// Read returns a copy of entry.
func (m *Memory) Read(_ context.Context, entry string) (*ndarray.Array, error) {
	arr, ok := m.Get(entry)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrEntryNotFound, entry)
	}

	return arr, nil
}

// Get returns a copy of entry. It works whether or not the writer is open.
func (m *Memory) Get(entry string) (*ndarray.Array, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	arr, ok := m.entries.Load(entry)
	if !ok {
		return nil, false
	}

	return arr.Clone(), true
}

// Entries returns the stored entry names in sorted order.
func (m *Memory) Entries() []string {
	names := make([]string, 0, m.entries.Size())
	m.entries.Range(func(name string, _ *ndarray.Array) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)

	return names
}

// Delete removes entry and reports whether it existed.
func (m *Memory) Delete(entry string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries.LoadAndDelete(entry)

	return ok
}
