package ndarray

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMarshalBinary_RoundTrip(t *testing.T) {
	arrays := map[string]*Array{
		"matrix":   mustNew(t, []int{2, 3}, []float64{1.5, -2, 0, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(-1)}),
		"scalar":   mustNew(t, []int{}, []float64{42}),
		"empty":    Zeros(3, 0),
		"channels": mustNew(t, []int{2, 2, 2}, seq(8)),
	}

	for name, a := range arrays {
		t.Run(name, func(t *testing.T) {
			data, err := a.MarshalBinary()
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			require.Equal(t, a.Shape(), got.Shape())
			if diff := cmp.Diff(a.Data(), got.Data()); diff != "" {
				t.Errorf("data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarshalBinary_Layout(t *testing.T) {
	data, err := mustNew(t, []int{1, 2}, []float64{1, 2}).MarshalBinary()
	require.NoError(t, err)

	require.Len(t, data, 4+4+2*8+2*8)
	require.Equal(t, "PWND", string(data[:4]))
	require.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[4:8]))
	require.Equal(t, uint64(1), binary.LittleEndian.Uint64(data[8:16]))
	require.Equal(t, uint64(2), binary.LittleEndian.Uint64(data[16:24]))
	require.Equal(t, 2.0, math.Float64frombits(binary.LittleEndian.Uint64(data[32:40])))
}

func TestDecode_Corrupt(t *testing.T) {
	valid, err := mustNew(t, []int{2, 2}, seq(4)).MarshalBinary()
	require.NoError(t, err)

	hugeDim := append([]byte("PWND"), 1, 0, 0, 0)
	hugeDim = binary.LittleEndian.AppendUint64(hugeDim, math.MaxUint64)

	// Each axis passes the per-axis limit but the element count wraps to zero.
	wrapped := binary.LittleEndian.AppendUint32([]byte("PWND"), 3)
	for range 3 {
		wrapped = binary.LittleEndian.AppendUint64(wrapped, 1<<30)
	}

	tests := map[string][]byte{
		"empty":            nil,
		"bad magic":        append([]byte("NOPE"), valid[4:]...),
		"truncated shape":  valid[:12],
		"truncated values": valid[:len(valid)-3],
		"trailing bytes":   append(append([]byte(nil), valid...), 0),
		"huge dimension":   hugeDim,
		"wrapping shape":   wrapped,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestUnmarshalBinary_ReplacesContent(t *testing.T) {
	data, err := mustNew(t, []int{3}, seq(3)).MarshalBinary()
	require.NoError(t, err)

	a := Zeros(2, 2)
	require.NoError(t, a.UnmarshalBinary(data))
	require.Equal(t, []int{3}, a.Shape())
	require.Equal(t, 3.0, a.At(2))
}
