package types

// SubjectState represents where a subject is in its assembly lifecycle.
//
// States follow a fixed progression:
//
//	SubjectUnseen → SubjectAccumulating → SubjectReady → (retrieved)
//
// A retrieved subject's state is dropped, so it reports SubjectUnseen again.
type SubjectState int

const (
	// SubjectUnseen indicates no patch of the subject is tracked.
	SubjectUnseen SubjectState = iota

	// SubjectAccumulating indicates patches are still being written.
	SubjectAccumulating

	// SubjectReady indicates the subject is complete and retrievable.
	SubjectReady
)

// String returns the string representation of the state.
func (s SubjectState) String() string {
	switch s {
	case SubjectUnseen:
		return "Unseen"
	case SubjectAccumulating:
		return "Accumulating"
	case SubjectReady:
		return "Ready"
	default:
		return "Unknown"
	}
}
