package types

import (
	"errors"
	"fmt"

	"github.com/arloliu/patchwork/ndarray"
)

// Sentinel errors for the patchwork library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).

// Assembler errors - Public API errors returned by the subject assembler.
var (
	// ErrMissingMetadata is returned when a batch lacks subject_index, index_expr or shape.
	ErrMissingMetadata = errors.New("missing batch metadata")

	// ErrUnknownSubject is returned when a subject was never seen or was already retrieved.
	ErrUnknownSubject = errors.New("unknown subject")

	// ErrEmptyPredictions is returned when a batch carries no prediction arrays.
	ErrEmptyPredictions = errors.New("predictions are empty")

	// ErrBatchSizeMismatch is returned when prediction arrays and metadata disagree on batch size.
	ErrBatchSizeMismatch = errors.New("batch size mismatch")

	// ErrShapeMismatch is returned when a patch does not fit its target region.
	ErrShapeMismatch = ndarray.ErrShapeMismatch

	// ErrKeyMismatch is returned when a batch's prediction keys differ from those a subject was allocated with.
	ErrKeyMismatch = errors.New("prediction keys do not match subject")

	// ErrAllocatorFailed is returned when the allocation strategy cannot provide a buffer.
	ErrAllocatorFailed = errors.New("accumulator allocation failed")
)

// Configuration errors.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Writer errors - Storage writer component errors.
var (
	// ErrWriterNotOpen is returned when a writer is used before Open or after Close.
	ErrWriterNotOpen = errors.New("writer not open")

	// ErrEntryNotFound is returned when reading or filling an entry that does not exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrChecksumMismatch is returned when stored data does not match its recorded checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Pipeline errors - Batch pipeline component errors.
var (
	// ErrPipelineClosed is returned when submitting to a closed pipeline.
	ErrPipelineClosed = errors.New("pipeline closed")

	// ErrReorderWindowExceeded is returned when too many batches arrive ahead of the next expected one.
	ErrReorderWindowExceeded = errors.New("reorder window exceeded")

	// ErrSequenceGap is returned when the pipeline closes while batches are still missing.
	ErrSequenceGap = errors.New("batch sequence gap")

	// ErrDuplicateSequence is returned when a batch sequence number is submitted twice.
	ErrDuplicateSequence = errors.New("duplicate batch sequence")
)

// MissingMetadataError reports a metadata field absent from a batch and the
// extraction collaborator responsible for producing it.
type MissingMetadataError struct {
	Field    string
	Producer string
}

// Error implements error.
func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("%s: %q must be extracted (use %s)", ErrMissingMetadata, e.Field, e.Producer)
}

// Is matches ErrMissingMetadata.
func (e *MissingMetadataError) Is(target error) bool {
	return target == ErrMissingMetadata
}

// UnknownSubjectError reports a subject id absent from the assembler.
type UnknownSubjectError struct {
	ID any
}

// Error implements error.
func (e *UnknownSubjectError) Error() string {
	return fmt.Sprintf("%s: subject %v not in assembler", ErrUnknownSubject, e.ID)
}

// Is matches ErrUnknownSubject.
func (e *UnknownSubjectError) Is(target error) bool {
	return target == ErrUnknownSubject
}
