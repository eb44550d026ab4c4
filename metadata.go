package patchwork

import (
	"fmt"

	"github.com/arloliu/patchwork/index"
	"github.com/arloliu/patchwork/types"
)

// Producer names of the extraction collaborators that fill Metadata fields.
const (
	producerIndexing   = "IndexingExtractor"
	producerImageShape = "ImageShapeExtractor"
)

// Metadata describes where each patch of a batch belongs.
//
// The three slices are parallel, one element per patch. A nil slice means the
// field was not extracted and makes Add fail with a MissingMetadataError.
type Metadata[K comparable] struct {
	// SubjectIndex identifies the subject each patch belongs to.
	SubjectIndex []K

	// IndexExpr locates each patch in its subject's output. Elements may be
	// decoded index.Expression values or serialized index.Encoded bytes.
	IndexExpr []index.Source

	// Shape is the full output shape of each patch's subject.
	Shape [][]int
}

// checkPresent reports the first field that was not extracted.
func (m Metadata[K]) checkPresent() error {
	switch {
	case m.SubjectIndex == nil:
		return &types.MissingMetadataError{Field: "subject_index", Producer: producerIndexing}
	case m.IndexExpr == nil:
		return &types.MissingMetadataError{Field: "index_expr", Producer: producerIndexing}
	case m.Shape == nil:
		return &types.MissingMetadataError{Field: "shape", Producer: producerImageShape}
	}

	return nil
}

// resolve checks every field against the batch size and decodes the index
// expressions.
func (m Metadata[K]) resolve(batch int) ([]index.Expression, error) {
	fields := []struct {
		name string
		n    int
	}{
		{"subject_index", len(m.SubjectIndex)},
		{"index_expr", len(m.IndexExpr)},
		{"shape", len(m.Shape)},
	}
	for _, f := range fields {
		if f.n != batch {
			return nil, fmt.Errorf("%w: metadata %s has %d entries, predictions have %d",
				types.ErrBatchSizeMismatch, f.name, f.n, batch)
		}
	}

	exprs := make([]index.Expression, batch)
	for i, src := range m.IndexExpr {
		if src == nil {
			return nil, fmt.Errorf("%w: index_expr[%d] is nil", index.ErrMalformed, i)
		}
		expr, err := src.Expr()
		if err != nil {
			return nil, fmt.Errorf("index_expr[%d]: %w", i, err)
		}
		exprs[i] = expr
	}

	return exprs, nil
}
