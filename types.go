package patchwork

import "github.com/arloliu/patchwork/types"

// Re-export types from the types package.
//
// Internal packages and the writer and pipeline packages depend on types
// rather than on the root package, which avoids import cycles while still
// offering patchwork.Buffer, patchwork.Logger and friends to users.
type (
	Buffer               = types.Buffer
	Allocator            = types.Allocator
	SubjectState         = types.SubjectState
	MissingMetadataError = types.MissingMetadataError
	UnknownSubjectError  = types.UnknownSubjectError
)

// Re-export interfaces from the types package for convenience.
type (
	Writer           = types.Writer
	Reader           = types.Reader
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export SubjectState constants from the types package.
const (
	SubjectUnseen       = types.SubjectUnseen
	SubjectAccumulating = types.SubjectAccumulating
	SubjectReady        = types.SubjectReady
)
