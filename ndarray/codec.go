package ndarray

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrCorrupt is returned when binary array data cannot be decoded.
var ErrCorrupt = errors.New("corrupt array encoding")

// encodingMagic prefixes every encoded array.
var encodingMagic = [4]byte{'P', 'W', 'N', 'D'}

// MarshalBinary encodes the array.
// Layout: [magic(4)][rank(4)][dims(8*rank)][elements(8*n)], little endian.
func (a *Array) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 8+8*len(a.shape)+8*len(a.data))
	buf = append(buf, encodingMagic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(a.shape))) //nolint:gosec // rank is small
	for _, n := range a.shape {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(n)) //nolint:gosec // dims are validated non-negative
	}
	for _, v := range a.data {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}

	return buf, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary into the array.
func (a *Array) UnmarshalBinary(data []byte) error {
	if len(data) < 8 || [4]byte(data[:4]) != encodingMagic {
		return fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	rank := int(binary.LittleEndian.Uint32(data[4:8]))
	data = data[8:]
	if len(data) < 8*rank {
		return fmt.Errorf("%w: truncated shape", ErrCorrupt)
	}

	shape := make([]int, rank)
	for d := range rank {
		n := binary.LittleEndian.Uint64(data[8*d:])
		if n > math.MaxInt32 {
			return fmt.Errorf("%w: axis %d has size %d", ErrCorrupt, d, n)
		}
		shape[d] = int(n)
	}
	data = data[8*rank:]
	if err := ValidateShape(shape); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	count := numElements(shape)
	if len(data) != 8*count {
		return fmt.Errorf("%w: expected %d elements, got %d bytes", ErrCorrupt, count, len(data))
	}
	values := make([]float64, count)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}

	a.shape = shape
	a.strides = strides(shape)
	a.data = values

	return nil
}

// Decode is a convenience wrapper around UnmarshalBinary.
func Decode(data []byte) (*Array, error) {
	a := &Array{}
	if err := a.UnmarshalBinary(data); err != nil {
		return nil, err
	}

	return a, nil
}
