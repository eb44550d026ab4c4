package index

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		want Expression
		str  string
	}{
		{text: "[0:32, 7, :, 10::2]", want: New(Range(0, 32), At(7), All(), RangeStep(10, End, 2)), str: ":32,7,:,10::2"},
		{text: "4:8,16:", want: New(Range(4, 8), Range(16, End)), str: "4:8,16:"},
		{text: "::3", want: New(RangeStep(0, End, 3)), str: "::3"},
		{text: "5", want: New(At(5)), str: "5"},
		{text: "", want: Expression{}, str: ""},
		{text: "[]", want: Expression{}, str: ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
			require.Equal(t, tt.str, got.String())

			again, err := Parse(got.String())
			require.NoError(t, err)
			require.Equal(t, got, again)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		text string
		err  error
	}{
		{text: "a", err: ErrMalformed},
		{text: "0:x", err: ErrMalformed},
		{text: "1:2:3:4", err: ErrMalformed},
		{text: "-1", err: ErrMalformed},
		{text: "-1:3", err: ErrMalformed},
		{text: "0:4:0", err: ErrInvalidStep},
		{text: "0:4:-2", err: ErrInvalidStep},
		{text: "0:2,,", err: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	exprs := []Expression{
		New(Range(0, 32), At(7), All(), RangeStep(10, End, 2)),
		Bounds([2]int{0, 1}),
		Along(3, At(0)),
		{},
	}

	for _, expr := range exprs {
		t.Run(expr.String(), func(t *testing.T) {
			enc, err := expr.Encode()
			require.NoError(t, err)

			got, err := enc.Expr()
			require.NoError(t, err)
			if diff := cmp.Diff(expr, got); diff != "" {
				t.Errorf("decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "0:4"},
		{name: "wrong type", data: `{"start":0}`},
		{name: "negative step", data: `[{"start":0,"stop":4,"step":-1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encoded(tt.data).Expr()
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestSource_Kinds(t *testing.T) {
	expr := Bounds([2]int{1, 3}, [2]int{0, 2})
	enc, err := expr.Encode()
	require.NoError(t, err)

	for _, src := range []Source{expr, enc} {
		got, err := src.Expr()
		require.NoError(t, err)
		require.Equal(t, expr, got)
	}
}
