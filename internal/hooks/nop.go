// Package hooks provides default lifecycle hook implementations.
package hooks

import (
	"context"

	"github.com/arloliu/patchwork/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, string, []string) error = (*NopHooks)(nil).OnSubjectWritten
	_ func(context.Context, error) error            = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnSubjectWritten: h.OnSubjectWritten,
		OnError:          h.OnError,
	}
}

// Fill returns h with every nil callback replaced by its no-op version.
func Fill(h types.Hooks) types.Hooks {
	nop := &NopHooks{}
	if h.OnSubjectWritten == nil {
		h.OnSubjectWritten = nop.OnSubjectWritten
	}
	if h.OnError == nil {
		h.OnError = nop.OnError
	}

	return h
}

// OnSubjectWritten is a no-op implementation.
func (h *NopHooks) OnSubjectWritten(_ context.Context, _ string, _ []string) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ error) error {
	return nil
}
