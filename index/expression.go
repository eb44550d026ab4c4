// Package index describes where a patch belongs inside a subject's output array.
//
// An Expression is an ordered list of per-axis selectors, applied with standard
// slicing semantics: a range selector keeps its axis, a point selector fixes the
// axis to one position and drops it from the selected region. Axes not covered
// by the expression are selected whole.
//
// Expressions travel with batch metadata either decoded or serialized (see
// Source and Encoded).
package index

import (
	"errors"
	"fmt"
)

// End marks a range selector that runs to the end of its axis.
const End = -1

// Index expression errors.
var (
	// ErrMalformed is returned when a serialized or textual expression cannot be decoded.
	ErrMalformed = errors.New("malformed index expression")

	// ErrRankExceeded is returned when an expression has more selectors than the target has axes.
	ErrRankExceeded = errors.New("index expression exceeds array rank")

	// ErrOutOfBounds is returned when a selector falls outside its axis.
	ErrOutOfBounds = errors.New("index expression out of bounds")

	// ErrInvalidStep is returned for non-positive range steps.
	ErrInvalidStep = errors.New("invalid range step")
)

// Selector selects positions along one axis.
type Selector struct {
	// Start is the first selected position (the fixed position for points).
	Start int `json:"start"`

	// Stop is the exclusive end of a range, or End.
	Stop int `json:"stop"`

	// Step is the stride between selected positions. Zero is treated as 1.
	Step int `json:"step,omitempty"`

	// Point fixes the axis to Start and drops it from the selected region.
	Point bool `json:"point,omitempty"`
}

// Range selects [start, stop) with step 1.
func Range(start, stop int) Selector {
	return Selector{Start: start, Stop: stop, Step: 1}
}

// RangeStep selects every step-th position of [start, stop).
func RangeStep(start, stop, step int) Selector {
	return Selector{Start: start, Stop: stop, Step: step}
}

// At fixes an axis to position i.
func At(i int) Selector {
	return Selector{Start: i, Stop: i + 1, Step: 1, Point: true}
}

// All selects a whole axis.
func All() Selector {
	return Selector{Start: 0, Stop: End, Step: 1}
}

func (s Selector) step() int {
	if s.Step == 0 {
		return 1
	}

	return s.Step
}

// Expression is an ordered sequence of per-axis selectors.
type Expression []Selector

// New builds an expression from selectors, first axis first.
func New(selectors ...Selector) Expression {
	return Expression(selectors)
}

// Bounds builds an expression of unit-step ranges from [start, stop) pairs.
//
// Example:
//
//	expr := index.Bounds([2]int{0, 32}, [2]int{64, 96})
//	// equivalent to "0:32,64:96"
func Bounds(bounds ...[2]int) Expression {
	expr := make(Expression, len(bounds))
	for i, b := range bounds {
		expr[i] = Range(b[0], b[1])
	}

	return expr
}

// Along anchors selectors at the given axis; every preceding axis is selected whole.
//
// Example:
//
//	expr := index.Along(2, index.At(17))
//	// selects slice 17 of the third axis: ":,:,17"
func Along(axis int, selectors ...Selector) Expression {
	if axis < 0 {
		axis = 0
	}
	expr := make(Expression, 0, axis+len(selectors))
	for range axis {
		expr = append(expr, All())
	}

	return append(expr, selectors...)
}

// Expr returns the expression itself, satisfying Source.
func (e Expression) Expr() (Expression, error) {
	return e, nil
}

// Axis is a resolved selector: Count positions from Start, Step apart.
type Axis struct {
	Start   int
	Step    int
	Count   int
	Dropped bool
}

// Region is an expression resolved against a concrete array shape.
// It always holds one Axis per array axis.
type Region struct {
	Axes []Axis
}

// Shape returns the shape of the selected region, without dropped axes.
func (r Region) Shape() []int {
	shape := make([]int, 0, len(r.Axes))
	for _, ax := range r.Axes {
		if ax.Dropped {
			continue
		}
		shape = append(shape, ax.Count)
	}

	return shape
}

// Size returns the number of selected elements.
func (r Region) Size() int {
	n := 1
	for _, ax := range r.Axes {
		n *= ax.Count
	}

	return n
}

// Region resolves the expression against an array of the given shape.
//
// Parameters:
//   - shape: Shape of the array the expression is applied to
//
// Returns:
//   - Region: One resolved Axis per array axis
//   - error: ErrRankExceeded, ErrOutOfBounds or ErrInvalidStep
func (e Expression) Region(shape []int) (Region, error) {
	if len(e) > len(shape) {
		return Region{}, fmt.Errorf("%w: %d selectors for rank %d", ErrRankExceeded, len(e), len(shape))
	}

	axes := make([]Axis, len(shape))
	for d, n := range shape {
		if d >= len(e) {
			axes[d] = Axis{Start: 0, Step: 1, Count: n}
			continue
		}

		ax, err := e[d].resolve(n)
		if err != nil {
			return Region{}, fmt.Errorf("axis %d: %w", d, err)
		}
		axes[d] = ax
	}

	return Region{Axes: axes}, nil
}

func (s Selector) resolve(n int) (Axis, error) {
	if s.Point {
		if s.Start < 0 || s.Start >= n {
			return Axis{}, fmt.Errorf("%w: point %d for size %d", ErrOutOfBounds, s.Start, n)
		}

		return Axis{Start: s.Start, Step: 1, Count: 1, Dropped: true}, nil
	}

	step := s.step()
	if step < 0 {
		return Axis{}, fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}

	stop := s.Stop
	if stop == End {
		stop = n
	}
	if s.Start < 0 || stop > n || s.Start > stop {
		return Axis{}, fmt.Errorf("%w: range %d:%d for size %d", ErrOutOfBounds, s.Start, s.Stop, n)
	}

	return Axis{Start: s.Start, Step: step, Count: (stop - s.Start + step - 1) / step}, nil
}
