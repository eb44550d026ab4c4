package patchwork

import (
	"fmt"
	"maps"
	"slices"

	"github.com/arloliu/patchwork/ndarray"
	"github.com/arloliu/patchwork/types"
)

// predictionKey is the internal key a bare prediction array is stored under.
const predictionKey = "__prediction"

// Predictions is one batch of model output: a bare array or a mapping from
// output key to array. Every array's outermost axis is the batch axis.
//
// The zero value carries no arrays.
type Predictions struct {
	arrays map[string]*ndarray.Array
	keyed  bool
}

// Single wraps a bare prediction array of shape (B, ...).
func Single(arr *ndarray.Array) Predictions {
	if arr == nil {
		return Predictions{}
	}

	return Predictions{arrays: map[string]*ndarray.Array{predictionKey: arr}}
}

// Keyed wraps a key to array mapping. All arrays must share the batch size.
func Keyed(arrays map[string]*ndarray.Array) Predictions {
	return Predictions{arrays: maps.Clone(arrays), keyed: true}
}

// IsKeyed reports whether the predictions were given as a mapping.
func (p Predictions) IsKeyed() bool {
	return p.keyed
}

// Keys returns the prediction keys in sorted order. Bare predictions report no keys.
func (p Predictions) Keys() []string {
	if !p.keyed {
		return nil
	}

	return slices.Sorted(maps.Keys(p.arrays))
}

// Len returns the number of prediction arrays.
func (p Predictions) Len() int {
	return len(p.arrays)
}

// batchSize returns the shared leading dimension of all arrays.
func (p Predictions) batchSize() (int, error) {
	size := -1
	for _, key := range p.sortedKeys() {
		arr := p.arrays[key]
		if arr == nil || arr.Rank() == 0 {
			return 0, fmt.Errorf("%w: prediction %q has no batch axis", types.ErrBatchSizeMismatch, p.displayKey(key))
		}
		b := arr.Shape()[0]
		if size >= 0 && b != size {
			return 0, fmt.Errorf("%w: prediction %q has %d patches, expected %d",
				types.ErrBatchSizeMismatch, p.displayKey(key), b, size)
		}
		size = b
	}

	return size, nil
}

func (p Predictions) sortedKeys() []string {
	return slices.Sorted(maps.Keys(p.arrays))
}

func (p Predictions) displayKey(key string) string {
	if !p.keyed {
		return "prediction"
	}

	return key
}

// Assembled is a retrieved subject: a single buffer when the subject was fed
// bare arrays, or one buffer per key otherwise.
type Assembled struct {
	buffers map[string]types.Buffer
	keyed   bool
}

// Keyed reports whether the subject was assembled from keyed predictions.
func (a Assembled) Keyed() bool {
	return a.keyed
}

// Buffer returns the assembled buffer of a subject fed bare arrays, or nil
// for keyed subjects.
func (a Assembled) Buffer() types.Buffer {
	if a.keyed {
		return nil
	}

	return a.buffers[predictionKey]
}

// Buffers returns the key to buffer mapping of a keyed subject. For a subject
// fed bare arrays it returns nil; use Buffer instead.
func (a Assembled) Buffers() map[string]types.Buffer {
	if !a.keyed {
		return nil
	}

	return a.buffers
}

// Array returns the bare buffer as an in-memory array when the default
// allocator produced it.
func (a Assembled) Array() (*ndarray.Array, bool) {
	arr, ok := a.Buffer().(*ndarray.Array)

	return arr, ok
}

// Entries returns the buffers keyed by their output name. Bare subjects are
// reported under the empty key.
func (a Assembled) Entries() map[string]types.Buffer {
	if a.keyed {
		return a.buffers
	}

	return map[string]types.Buffer{"": a.buffers[predictionKey]}
}
