package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/patchwork/types"
)

func TestNewNop(t *testing.T) {
	hooks := NewNop()

	require.NotNil(t, hooks.OnSubjectWritten)
	require.NotNil(t, hooks.OnError)
}

func TestNopHooks_OnSubjectWritten(t *testing.T) {
	hooks := NewNop()
	ctx := context.Background()

	err := hooks.OnSubjectWritten(ctx, "subject-7", []string{"subject-7/segmentation", "subject-7/probabilities"})
	require.NoError(t, err)

	err = hooks.OnSubjectWritten(ctx, "", nil)
	require.NoError(t, err)
}

func TestNopHooks_OnError(t *testing.T) {
	hooks := NewNop()

	err := hooks.OnError(context.Background(), errors.New("boom"))
	require.NoError(t, err)
}

func TestFill(t *testing.T) {
	t.Run("fills nil callbacks", func(t *testing.T) {
		h := Fill(types.Hooks{})

		require.NotNil(t, h.OnSubjectWritten)
		require.NotNil(t, h.OnError)
	})

	t.Run("keeps provided callbacks", func(t *testing.T) {
		sentinel := errors.New("written")
		h := Fill(types.Hooks{
			OnSubjectWritten: func(context.Context, string, []string) error { return sentinel },
		})

		require.ErrorIs(t, h.OnSubjectWritten(context.Background(), "s", nil), sentinel)
		require.NoError(t, h.OnError(context.Background(), errors.New("x")))
	})
}
