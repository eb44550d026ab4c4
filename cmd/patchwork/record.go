package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/arloliu/patchwork"
	"github.com/arloliu/patchwork/index"
	"github.com/arloliu/patchwork/ndarray"
	"github.com/arloliu/patchwork/pipeline"
)

// arrayRecord is a JSON encoded ndarray.
type arrayRecord struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

func (r arrayRecord) array() (*ndarray.Array, error) {
	return ndarray.New(r.Shape, r.Data)
}

// batchRecord is one line of a replay file.
//
// Exactly one of Prediction and Predictions is set. Metadata fields left out
// of the line are reported as missing by the assembler.
//
//	{"seq":0,"prediction":{"shape":[1,2],"data":[1,2]},
//	 "subject_index":["a"],"index_expr":["0:1"],"shape":[[2,2]]}
type batchRecord struct {
	Seq          uint64                 `json:"seq"`
	Last         bool                   `json:"last,omitempty"`
	Prediction   *arrayRecord           `json:"prediction,omitempty"`
	Predictions  map[string]arrayRecord `json:"predictions,omitempty"`
	SubjectIndex []string               `json:"subject_index"`
	IndexExpr    []string               `json:"index_expr"`
	Shape        [][]int                `json:"shape"`
}

// batch converts the record into a pipeline batch.
func (r *batchRecord) batch() (pipeline.Batch[string], error) {
	b := pipeline.Batch[string]{Seq: r.Seq, Last: r.Last}

	switch {
	case r.Prediction != nil && r.Predictions != nil:
		return b, fmt.Errorf("batch %d: prediction and predictions are mutually exclusive", r.Seq)
	case r.Prediction != nil:
		arr, err := r.Prediction.array()
		if err != nil {
			return b, fmt.Errorf("batch %d: prediction: %w", r.Seq, err)
		}
		b.Predictions = patchwork.Single(arr)
	case r.Predictions != nil:
		arrays := make(map[string]*ndarray.Array, len(r.Predictions))
		for key, rec := range r.Predictions {
			arr, err := rec.array()
			if err != nil {
				return b, fmt.Errorf("batch %d: predictions[%q]: %w", r.Seq, key, err)
			}
			arrays[key] = arr
		}
		b.Predictions = patchwork.Keyed(arrays)
	}

	b.Metadata.SubjectIndex = r.SubjectIndex
	b.Metadata.Shape = r.Shape
	if r.IndexExpr != nil {
		b.Metadata.IndexExpr = make([]index.Source, len(r.IndexExpr))
		for i, text := range r.IndexExpr {
			expr, err := index.Parse(text)
			if err != nil {
				return b, fmt.Errorf("batch %d: index_expr[%d]: %w", r.Seq, i, err)
			}
			b.Metadata.IndexExpr[i] = expr
		}
	}

	return b, nil
}

// readRecords sends every line of src to out until src is exhausted or ctx
// ends. Blank lines are skipped.
func readRecords(ctx context.Context, src io.Reader, out chan<- []byte) error {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		data := append([]byte(nil), scanner.Bytes()...)
		select {
		case out <- data:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read line %d: %w", line+1, err)
	}

	return nil
}

// decodeRecord parses one replay line.
func decodeRecord(data []byte) (pipeline.Batch[string], error) {
	var rec batchRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return pipeline.Batch[string]{}, fmt.Errorf("decode batch: %w", err)
	}

	return rec.batch()
}
