package testing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATS(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)

	require.NotNil(t, ns)
	require.NotNil(t, nc)
	require.True(t, nc.IsConnected())
	require.True(t, ns.JetStreamEnabled())
}

func TestStartEmbeddedNATS_ParallelTests(t *testing.T) {
	for i := range 3 {
		t.Run("parallel", func(t *testing.T) {
			t.Parallel()

			_, nc := StartEmbeddedNATS(t)
			require.True(t, nc.IsConnected(), "instance %d", i)
		})
	}
}

func TestCreateObjectStore(t *testing.T) {
	_, nc := StartEmbeddedNATS(t)
	store := CreateObjectStore(t, nc, "test-predictions")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := store.PutBytes(ctx, "subject-1/seg", []byte{1, 2, 3})
	require.NoError(t, err)

	got, err := store.GetBytes(ctx, "subject-1/seg")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)
}
