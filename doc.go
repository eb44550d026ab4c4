// Package patchwork reassembles per-patch model predictions into full
// per-subject arrays.
//
// Batched inference over large images works on patches: tiles or sub-volumes
// cut from many subjects and mixed into the same batch. Each patch carries the
// id of its subject, an index expression locating it in the subject's output,
// and the subject's full output shape. SubjectAssembler collects the patch
// predictions into one accumulator per subject and reports a subject ready as
// soon as patches of a later subject start to arrive.
//
// # Quick Start
//
//	asm := patchwork.NewSubjectAssembler[int]()
//
//	for i, batch := range batches {
//	    meta := patchwork.Metadata[int]{
//	        SubjectIndex: batch.Subjects,
//	        IndexExpr:    batch.Exprs,
//	        Shape:        batch.Shapes,
//	    }
//	    if err := asm.Add(patchwork.Single(batch.Prediction), meta, i == len(batches)-1); err != nil {
//	        return err
//	    }
//	    for _, id := range asm.Ready() {
//	        out, _ := asm.GetAssembled(id)
//	        store(id, out.Buffer())
//	    }
//	}
//
// # Completion Detection
//
// Subjects move through a fixed lifecycle:
//
//	Unseen → Accumulating → Ready → Retrieved
//
// The assembler has no notion of how many patches a subject has. It assumes a
// subject's patches are contiguous in delivery order, so the first patch of an
// untracked subject completes every tracked subject. The final subjects are
// completed by the last flag of Add or by Flush. A subject id that reappears
// after a later subject started is not detected and is reported ready early.
//
// # Storage
//
// Accumulators come from an Allocator. The default keeps zero-filled arrays in
// memory; writer.BackedAllocator accumulates directly into a storage entry
// instead. The pipeline package feeds an assembler from parallel producers and
// drains ready subjects into a types.Writer.
package patchwork
