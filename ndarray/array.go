// Package ndarray provides a dense, row-major float64 N-dimensional array.
//
// Array is the default accumulator buffer of the subject assembler and the
// carrier of per-batch model predictions: the outermost axis of a prediction
// array is the batch axis, and Row returns one patch as a view.
package ndarray

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/arloliu/patchwork/index"
)

var (
	// ErrShapeMismatch is returned when source data does not fit the selected region.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidShape is returned for negative dimensions or data of the wrong length.
	ErrInvalidShape = errors.New("invalid shape")
)

// Array is a contiguous row-major float64 array.
type Array struct {
	shape   []int
	strides []int
	data    []float64
}

// maxElements bounds the element count so that the byte size of the data
// still fits in an int.
const maxElements = math.MaxInt / 8

// ValidateShape checks that all dimensions are non-negative and that the
// element count fits in addressable memory.
func ValidateShape(shape []int) error {
	for d, n := range shape {
		if n < 0 {
			return fmt.Errorf("%w: axis %d has size %d", ErrInvalidShape, d, n)
		}
	}

	count := 1
	for _, n := range shape {
		if n == 0 {
			return nil
		}
		if count > maxElements/n {
			return fmt.Errorf("%w: shape %v exceeds addressable size", ErrInvalidShape, shape)
		}
		count *= n
	}

	return nil
}

// Zeros allocates a zero-filled array. It panics on shapes rejected by ValidateShape.
func Zeros(shape ...int) *Array {
	if err := ValidateShape(shape); err != nil {
		panic(err)
	}

	return &Array{
		shape:   slices.Clone(shape),
		strides: strides(shape),
		data:    make([]float64, numElements(shape)),
	}
}

// New wraps data as an array of the given shape. The data slice is not copied.
//
// Returns:
//   - *Array: Array backed by data
//   - error: ErrInvalidShape if ValidateShape rejects the shape or it does not match len(data)
func New(shape []int, data []float64) (*Array, error) {
	if err := ValidateShape(shape); err != nil {
		return nil, err
	}
	if n := numElements(shape); n != len(data) {
		return nil, fmt.Errorf("%w: shape %v needs %d elements, got %d", ErrInvalidShape, shape, n, len(data))
	}

	return &Array{shape: slices.Clone(shape), strides: strides(shape), data: data}, nil
}

// Shape returns a copy of the array's shape.
func (a *Array) Shape() []int {
	return slices.Clone(a.shape)
}

// Rank returns the number of axes.
func (a *Array) Rank() int {
	return len(a.shape)
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.data)
}

// Data returns the backing slice in row-major order.
func (a *Array) Data() []float64 {
	return a.data
}

// At returns the element at the given position.
func (a *Array) At(idx ...int) float64 {
	return a.data[a.offset(idx)]
}

// Set stores v at the given position.
func (a *Array) Set(v float64, idx ...int) {
	a.data[a.offset(idx)] = v
}

func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("ndarray: %d indices for rank %d", len(idx), len(a.shape)))
	}
	off := 0
	for d, i := range idx {
		if i < 0 || i >= a.shape[d] {
			panic(fmt.Sprintf("ndarray: index %d out of range for axis %d of size %d", i, d, a.shape[d]))
		}
		off += i * a.strides[d]
	}

	return off
}

// Row returns row i of the outermost axis as a view sharing this array's data.
func (a *Array) Row(i int) *Array {
	if len(a.shape) == 0 {
		panic("ndarray: Row on scalar array")
	}
	if i < 0 || i >= a.shape[0] {
		panic(fmt.Sprintf("ndarray: row %d out of range for %d rows", i, a.shape[0]))
	}
	cell := a.strides[0]

	return &Array{
		shape:   slices.Clone(a.shape[1:]),
		strides: slices.Clone(a.strides[1:]),
		data:    a.data[i*cell : (i+1)*cell],
	}
}

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	return &Array{shape: slices.Clone(a.shape), strides: slices.Clone(a.strides), data: slices.Clone(a.data)}
}

// Equal reports whether both arrays have the same shape and elements.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}

	return slices.Equal(a.shape, b.shape) && slices.Equal(a.data, b.data)
}

// Assign writes src into the region selected by expr.
//
// src must have the region's shape; axes of size one are ignored when comparing,
// so a (1, 32, 32) patch fits a region of shape (32, 32) and vice versa.
//
// Parameters:
//   - expr: Region of this array to overwrite
//   - src: Values to write, in row-major order of the region
//
// Returns:
//   - error: Index resolution errors or ErrShapeMismatch
func (a *Array) Assign(expr index.Expression, src *Array) error {
	region, err := expr.Region(a.shape)
	if err != nil {
		return err
	}
	if !fits(region.Shape(), src.shape) {
		return fmt.Errorf("%w: cannot assign %v into region %v of %v (%s)",
			ErrShapeMismatch, src.shape, region.Shape(), a.shape, expr)
	}

	pos := 0
	a.runs(region, func(off, step, n int) {
		if step == 1 {
			copy(a.data[off:off+n], src.data[pos:pos+n])
		} else {
			for k := range n {
				a.data[off+k*step] = src.data[pos+k]
			}
		}
		pos += n
	})

	return nil
}

// Extract copies the region selected by expr into a new array.
func (a *Array) Extract(expr index.Expression) (*Array, error) {
	region, err := expr.Region(a.shape)
	if err != nil {
		return nil, err
	}

	out := Zeros(region.Shape()...)
	pos := 0
	a.runs(region, func(off, step, n int) {
		for k := range n {
			out.data[pos+k] = a.data[off+k*step]
		}
		pos += n
	})

	return out, nil
}

// runs visits the region as runs along the innermost axis. fn receives the
// offset of the run's first element, the element spacing and the run length.
func (a *Array) runs(r index.Region, fn func(off, step, n int)) {
	rank := len(a.shape)
	if rank == 0 {
		fn(0, 1, 1)
		return
	}
	if r.Size() == 0 {
		return
	}

	inner := r.Axes[rank-1]
	counter := make([]int, rank-1)
	for {
		off := inner.Start
		for d := range rank - 1 {
			ax := r.Axes[d]
			off += (ax.Start + counter[d]*ax.Step) * a.strides[d]
		}
		fn(off, inner.Step, inner.Count)

		d := rank - 2
		for ; d >= 0; d-- {
			counter[d]++
			if counter[d] < r.Axes[d].Count {
				break
			}
			counter[d] = 0
		}
		if d < 0 {
			return
		}
	}
}

// fits compares two shapes ignoring axes of size one.
func fits(a, b []int) bool {
	return slices.Equal(squeeze(a), squeeze(b))
}

func squeeze(shape []int) []int {
	out := make([]int, 0, len(shape))
	for _, n := range shape {
		if n != 1 {
			out = append(out, n)
		}
	}

	return out
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}

	return n
}

// strides computes row-major element strides.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for d := len(shape) - 1; d >= 0; d-- {
		s[d] = acc
		acc *= shape[d]
	}

	return s
}
