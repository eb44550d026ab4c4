package types

import "testing"

func TestSubjectStateString(t *testing.T) {
	tests := []struct {
		state SubjectState
		want  string
	}{
		{SubjectUnseen, "Unseen"},
		{SubjectAccumulating, "Accumulating"},
		{SubjectReady, "Ready"},
		{SubjectState(999), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("SubjectState.String() = %v, want %v", got, tt.want)
			}
		})
	}
}
