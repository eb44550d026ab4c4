package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelErrors(t *testing.T) {
	t.Run("wrapped errors maintain identity", func(t *testing.T) {
		wrapped := fmt.Errorf("add batch: %w", ErrBatchSizeMismatch)
		require.ErrorIs(t, wrapped, ErrBatchSizeMismatch)
		require.NotErrorIs(t, wrapped, ErrEmptyPredictions)
	})

	t.Run("all errors are distinct", func(t *testing.T) {
		allErrors := []error{
			// Assembler errors
			ErrMissingMetadata,
			ErrUnknownSubject,
			ErrEmptyPredictions,
			ErrBatchSizeMismatch,
			ErrShapeMismatch,
			ErrAllocatorFailed,
			// Configuration errors
			ErrInvalidConfig,
			// Writer errors
			ErrWriterNotOpen,
			ErrEntryNotFound,
			ErrChecksumMismatch,
			// Pipeline errors
			ErrPipelineClosed,
			ErrReorderWindowExceeded,
			ErrSequenceGap,
			ErrDuplicateSequence,
		}

		for i, err1 := range allErrors {
			for j, err2 := range allErrors {
				if i == j {
					require.True(t, errors.Is(err1, err2), "error should equal itself: %v", err1)
				} else {
					require.False(t, errors.Is(err1, err2), "errors should be distinct: %v vs %v", err1, err2)
				}
			}
		}
	})
}

func TestMissingMetadataError(t *testing.T) {
	err := error(&MissingMetadataError{Field: "shape", Producer: "ImageShapeExtractor"})

	require.ErrorIs(t, err, ErrMissingMetadata)
	require.NotErrorIs(t, err, ErrUnknownSubject)
	require.Contains(t, err.Error(), `"shape"`)
	require.Contains(t, err.Error(), "ImageShapeExtractor")

	var target *MissingMetadataError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &target)
	require.Equal(t, "shape", target.Field)
}

func TestUnknownSubjectError(t *testing.T) {
	err := error(&UnknownSubjectError{ID: 42})

	require.ErrorIs(t, err, ErrUnknownSubject)
	require.Contains(t, err.Error(), "42")

	var target *UnknownSubjectError
	require.ErrorAs(t, err, &target)
	require.Equal(t, 42, target.ID)
}
