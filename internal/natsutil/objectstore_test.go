package natsutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	pwtest "github.com/arloliu/patchwork/testing"
)

func TestEnsureObjectStoreWithRetry(t *testing.T) {
	_, nc := pwtest.StartEmbeddedNATS(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	t.Run("creates missing bucket", func(t *testing.T) {
		store, err := EnsureObjectStoreWithRetry(ctx, js, jetstream.ObjectStoreConfig{Bucket: "fresh"}, 3)
		require.NoError(t, err)
		require.NotNil(t, store)
	})

	t.Run("opens existing bucket", func(t *testing.T) {
		cfg := jetstream.ObjectStoreConfig{Bucket: "existing"}
		first, err := EnsureObjectStoreWithRetry(ctx, js, cfg, 3)
		require.NoError(t, err)
		_, err = first.PutBytes(ctx, "entry", []byte("payload"))
		require.NoError(t, err)

		second, err := EnsureObjectStoreWithRetry(ctx, js, cfg, 3)
		require.NoError(t, err)
		data, err := second.GetBytes(ctx, "entry")
		require.NoError(t, err)
		require.Equal(t, "payload", string(data))
	})

	t.Run("concurrent creates", func(t *testing.T) {
		const workers = 5
		var wg sync.WaitGroup
		errs := make(chan error, workers)

		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := EnsureObjectStoreWithRetry(ctx, js, jetstream.ObjectStoreConfig{Bucket: "contended"}, 5)
				if err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
	})

	t.Run("invalid bucket name fails fast", func(t *testing.T) {
		_, err := EnsureObjectStoreWithRetry(ctx, js, jetstream.ObjectStoreConfig{Bucket: "bad name!"}, 3)
		require.Error(t, err)
	})
}

func TestIsConnectivityError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", nats.ErrTimeout, true},
		{"wrapped no servers", errors.Join(errors.New("dial"), nats.ErrNoServers), true},
		{"refused text", errors.New("dial tcp: connection refused"), true},
		{"other", errors.New("invalid bucket name"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsConnectivityError(tt.err))
		})
	}
}

func TestBackoff(t *testing.T) {
	require.Equal(t, 10*time.Millisecond, Backoff(0))
	require.Equal(t, 40*time.Millisecond, Backoff(2))
	require.Equal(t, Backoff(10), Backoff(50))
}
