// Package writer persists assembled subjects.
//
// Every writer implements types.Writer and types.Reader and follows the same
// lifecycle: Open, any number of Reserve, Fill and Write calls, then Close.
// With scopes that lifecycle so Close runs on every exit path.
//
// Three backends are provided:
//   - Memory keeps entries in process and is readable while being written
//   - SQLite stores entries in a single database file
//   - ObjectStore stores entries in a NATS JetStream object store bucket
//
// Persistent backends record an xxh3 checksum per entry and verify it when
// the entry is read back.
package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/arloliu/patchwork/internal/logger"
	"github.com/arloliu/patchwork/internal/metrics"
	"github.com/arloliu/patchwork/types"
)

// Option configures a writer.
type Option func(*options)

type options struct {
	logger  types.Logger
	metrics types.MetricsCollector
	verify  bool
}

func newOptions(opts []Option) options {
	o := options{
		logger:  logger.NewNop(),
		metrics: metrics.NewNop(),
		verify:  true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// WithLogger sets the logger used for storage diagnostics.
func WithLogger(l types.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the collector receiving per-operation metrics.
func WithMetrics(m types.MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithChecksumVerification enables or disables checksum checks on read.
// Verification is enabled by default.
func WithChecksumVerification(enabled bool) Option {
	return func(o *options) {
		o.verify = enabled
	}
}

// observe records one storage operation and passes err through.
func (o *options) observe(backend, op, entry string, start time.Time, err error) error {
	o.metrics.RecordWriterOperation(backend, op, time.Since(start).Seconds(), err == nil)
	if err != nil {
		o.logger.Debug("storage operation failed",
			"backend", backend,
			"op", op,
			"entry", entry,
			"error", err,
		)
	}

	return err
}

// With opens w, runs fn and closes w, whatever fn returns.
//
// Errors from fn and Close are joined, so a failing Close is never masked by
// a successful fn or the other way around.
//
// Parameters:
//   - ctx: Context passed to Open and Close
//   - w: Writer to scope
//   - fn: Work to run while w is open
//
// Returns:
//   - error: Open error, or fn and Close errors joined
//
// Example:
//
//	err := writer.With(ctx, writer.NewSQLite("out.db"), func(w types.Writer) error {
//	    return w.Write(ctx, "subject-1", arr)
//	})
func With(ctx context.Context, w types.Writer, fn func(types.Writer) error) (err error) {
	if err := w.Open(ctx); err != nil {
		return fmt.Errorf("open writer: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = w.Close(ctx)
			panic(r)
		}
		if closeErr := w.Close(ctx); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close writer: %w", closeErr))
		}
	}()

	return fn(w)
}

// EntryNamer maps a subject and prediction key to a writer entry name.
// key is empty for subjects assembled from bare predictions.
type EntryNamer func(subject, key string) string

// SubjectEntries names entries "<prefix><subject>" for bare predictions and
// "<prefix><subject>/<key>" for keyed ones.
func SubjectEntries(prefix string) EntryNamer {
	return func(subject, key string) string {
		if key == "" {
			return prefix + subject
		}

		return prefix + subject + "/" + key
	}
}

// Checksum returns the xxh3 hash of encoded entry data.
func Checksum(data []byte) uint64 {
	return xxh3.Hash(data)
}

func verifyChecksum(entry string, data []byte, want uint64) error {
	if got := Checksum(data); got != want {
		return fmt.Errorf("%w: entry %q has checksum %016x, recorded %016x", types.ErrChecksumMismatch, entry, got, want)
	}

	return nil
}
