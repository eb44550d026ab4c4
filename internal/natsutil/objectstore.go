// Package natsutil provides helpers for NATS JetStream object stores.
package natsutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// EnsureObjectStoreWithRetry creates or opens an object store bucket with retry logic.
//
// Several writers may race to create the same bucket. The loser of the race
// sees ErrBucketExists and opens the existing bucket instead. Transient
// failures are retried with exponential backoff.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: Object store configuration
//   - maxRetries: Maximum number of attempts (default: 3)
//
// Returns:
//   - jetstream.ObjectStore: The bucket handle
//   - error: The last error after all attempts, or a non-retryable error
//
// Example:
//
//	store, err := natsutil.EnsureObjectStoreWithRetry(ctx, js, jetstream.ObjectStoreConfig{
//	    Bucket: "predictions",
//	}, 3)
func EnsureObjectStoreWithRetry(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.ObjectStoreConfig,
	maxRetries int,
) (jetstream.ObjectStore, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error

	for attempt := range maxRetries {
		store, err := js.CreateObjectStore(ctx, config)
		if err == nil {
			return store, nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			store, err = js.ObjectStore(ctx, config.Bucket)
			if err == nil {
				return store, nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
		} else {
			lastErr = err
		}

		if !IsConnectivityError(lastErr) && !errors.Is(lastErr, jetstream.ErrBucketNotFound) {
			return nil, fmt.Errorf("failed to create/open object store %s: %w", config.Bucket, lastErr)
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during object store creation: %w", ctx.Err())
		}

		// Exponential backoff: 10ms, 20ms, 40ms...
		if attempt < maxRetries-1 {
			backoff := Backoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("failed to create/open object store %s after %d attempts: %w",
		config.Bucket, maxRetries, lastErr)
}

// Backoff returns the delay before retry attempt n (zero based).
func Backoff(attempt int) time.Duration {
	if attempt > 10 {
		attempt = 10
	}

	return time.Duration(1<<uint(attempt)) * 10 * time.Millisecond //nolint:gosec // attempt is clamped
}
