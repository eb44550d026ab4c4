package patchwork

import "github.com/arloliu/patchwork/types"

// Sentinel errors re-exported from the types package.
//
// Check them with errors.Is; the structured MissingMetadataError and
// UnknownSubjectError also match their sentinels.
var (
	// Assembler errors
	ErrMissingMetadata   = types.ErrMissingMetadata
	ErrUnknownSubject    = types.ErrUnknownSubject
	ErrEmptyPredictions  = types.ErrEmptyPredictions
	ErrBatchSizeMismatch = types.ErrBatchSizeMismatch
	ErrShapeMismatch     = types.ErrShapeMismatch
	ErrKeyMismatch       = types.ErrKeyMismatch
	ErrAllocatorFailed   = types.ErrAllocatorFailed

	// Configuration errors
	ErrInvalidConfig = types.ErrInvalidConfig

	// Writer errors
	ErrWriterNotOpen    = types.ErrWriterNotOpen
	ErrEntryNotFound    = types.ErrEntryNotFound
	ErrChecksumMismatch = types.ErrChecksumMismatch

	// Pipeline errors
	ErrPipelineClosed        = types.ErrPipelineClosed
	ErrReorderWindowExceeded = types.ErrReorderWindowExceeded
	ErrSequenceGap           = types.ErrSequenceGap
	ErrDuplicateSequence     = types.ErrDuplicateSequence
)
