package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/patchwork/index"
	"github.com/arloliu/patchwork/internal/natsutil"
	"github.com/arloliu/patchwork/ndarray"
	"github.com/arloliu/patchwork/types"
)

const backendNATS = "nats"

// Object metadata keys.
const (
	metaShape    = "shape"
	metaChecksum = "xxh3"
)

// ObjectStore stores entries as objects in a NATS JetStream object store.
//
// Objects are immutable once put, so Reserve and Fill work on a staged
// in-memory copy. A staged entry is put when it is committed, written over,
// or when the writer closes. Write puts immediately.
type ObjectStore struct {
	js     jetstream.JetStream
	bucket string
	opts   options

	mu     sync.Mutex
	store  jetstream.ObjectStore
	staged map[string]*ndarray.Array
}

var (
	_ types.Writer = (*ObjectStore)(nil)
	_ types.Reader = (*ObjectStore)(nil)
)

// NewObjectStore creates a writer for the given bucket. The bucket is created
// on Open if it does not exist.
//
// Parameters:
//   - js: JetStream context
//   - bucket: Object store bucket name
//   - opts: Optional logger, metrics and checksum settings
//
// Returns:
//   - *ObjectStore: Writer, not yet open
func NewObjectStore(js jetstream.JetStream, bucket string, opts ...Option) *ObjectStore {
	return &ObjectStore{
		js:     js,
		bucket: bucket,
		opts:   newOptions(opts),
		staged: make(map[string]*ndarray.Array),
	}
}

// Open creates or opens the bucket.
func (o *ObjectStore) Open(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.store != nil {
		return nil
	}

	store, err := natsutil.EnsureObjectStoreWithRetry(ctx, o.js, jetstream.ObjectStoreConfig{
		Bucket:      o.bucket,
		Description: "patchwork assembled subjects",
	}, 3)
	if err != nil {
		return err
	}
	o.store = store
	o.opts.logger.Debug("object store writer opened", "bucket", o.bucket)

	return nil
}

// Close puts every staged entry and releases the bucket handle.
func (o *ObjectStore) Close(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.store == nil {
		return nil
	}

	var errs []error
	for _, entry := range slices.Sorted(maps.Keys(o.staged)) {
		if err := o.commitLocked(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	o.store = nil

	return errors.Join(errs...)
}

// Reserve stages a zero-filled entry.
func (o *ObjectStore) Reserve(_ context.Context, entry string, shape []int) error {
	start := time.Now()

	err := func() error {
		if err := ndarray.ValidateShape(shape); err != nil {
			return err
		}
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.store == nil {
			return types.ErrWriterNotOpen
		}
		o.staged[entry] = ndarray.Zeros(shape...)

		return nil
	}()

	return o.opts.observe(backendNATS, "reserve", entry, start, err)
}

// Fill writes data into the staged copy of entry. An entry that was already
// put is fetched and staged again first.
func (o *ObjectStore) Fill(ctx context.Context, entry string, data *ndarray.Array, expr index.Expression) error {
	start := time.Now()

	err := func() error {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.store == nil {
			return types.ErrWriterNotOpen
		}

		cur, ok := o.staged[entry]
		if !ok {
			fetched, err := o.fetchLocked(ctx, entry)
			if err != nil {
				return err
			}
			cur = fetched
		}
		if err := cur.Assign(expr, data); err != nil {
			return err
		}
		o.staged[entry] = cur

		return nil
	}()

	return o.opts.observe(backendNATS, "fill", entry, start, err)
}

// Write puts data as entry, discarding any staged copy.
func (o *ObjectStore) Write(ctx context.Context, entry string, data *ndarray.Array) error {
	start := time.Now()

	err := func() error {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.store == nil {
			return types.ErrWriterNotOpen
		}
		delete(o.staged, entry)

		return o.putLocked(ctx, entry, data)
	}()

	return o.opts.observe(backendNATS, "write", entry, start, err)
}

// Commit puts the staged copy of entry. Committing an entry that is not
// staged is a no-op.
func (o *ObjectStore) Commit(ctx context.Context, entry string) error {
	start := time.Now()

	err := func() error {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.store == nil {
			return types.ErrWriterNotOpen
		}

		return o.commitLocked(ctx, entry)
	}()

	return o.opts.observe(backendNATS, "commit", entry, start, err)
}

// Read returns entry: the staged copy if there is one, the stored object otherwise.
func (o *ObjectStore) Read(ctx context.Context, entry string) (*ndarray.Array, error) {
	start := time.Now()

	arr, err := func() (*ndarray.Array, error) {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.store == nil {
			return nil, types.ErrWriterNotOpen
		}
		if staged, ok := o.staged[entry]; ok {
			return staged.Clone(), nil
		}

		return o.fetchLocked(ctx, entry)
	}()

	return arr, o.opts.observe(backendNATS, "read", entry, start, err)
}

// Entries returns stored and staged entry names in sorted order.
func (o *ObjectStore) Entries(ctx context.Context) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.store == nil {
		return nil, types.ErrWriterNotOpen
	}

	names := slices.Collect(maps.Keys(o.staged))
	infos, err := o.store.List(ctx)
	if err != nil && !errors.Is(err, jetstream.ErrNoObjectsFound) {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	for _, info := range infos {
		if !info.Deleted {
			names = append(names, info.Name)
		}
	}
	slices.Sort(names)

	return slices.Compact(names), nil
}

func (o *ObjectStore) commitLocked(ctx context.Context, entry string) error {
	staged, ok := o.staged[entry]
	if !ok {
		return nil
	}
	if err := o.putLocked(ctx, entry, staged); err != nil {
		return err
	}
	delete(o.staged, entry)

	return nil
}

func (o *ObjectStore) putLocked(ctx context.Context, entry string, data *ndarray.Array) error {
	blob, err := data.MarshalBinary()
	if err != nil {
		return err
	}
	shape, err := json.Marshal(data.Shape())
	if err != nil {
		return err
	}

	_, err = o.store.Put(ctx, jetstream.ObjectMeta{
		Name: entry,
		Metadata: map[string]string{
			metaShape:    string(shape),
			metaChecksum: strconv.FormatUint(Checksum(blob), 16),
		},
	}, bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("put object %q: %w", entry, err)
	}
	o.opts.metrics.RecordBytesWritten(backendNATS, len(blob))

	return nil
}

func (o *ObjectStore) fetchLocked(ctx context.Context, entry string) (*ndarray.Array, error) {
	info, err := o.store.GetInfo(ctx, entry)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %q", types.ErrEntryNotFound, entry)
	}
	if err != nil {
		return nil, fmt.Errorf("get object info %q: %w", entry, err)
	}

	blob, err := o.store.GetBytes(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", entry, err)
	}

	if o.opts.verify {
		want, err := strconv.ParseUint(info.Metadata[metaChecksum], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q has no valid checksum", types.ErrChecksumMismatch, entry)
		}
		if err := verifyChecksum(entry, blob, want); err != nil {
			return nil, err
		}
	}

	return ndarray.Decode(blob)
}
