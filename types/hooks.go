package types

import "context"

// Hooks defines callbacks for pipeline events.
//
// All hooks are optional and are called synchronously from the pipeline's
// consumer goroutine, so they delay assembly of the next batch while running.
// Hook errors are logged but don't fail pipeline operations.
//
// Example:
//
//	hooks := &patchwork.Hooks{
//	    OnSubjectWritten: func(ctx context.Context, subject string, entries []string) error {
//	        log.Printf("subject %s stored as %v", subject, entries)
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnSubjectWritten is called after an assembled subject has been persisted.
	// subject: formatted subject id
	// entries: writer entries created for the subject, one per prediction key
	OnSubjectWritten func(ctx context.Context, subject string, entries []string) error

	// OnError is called when a batch or a subject write fails.
	OnError func(ctx context.Context, err error) error
}
