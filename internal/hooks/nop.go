package hooks

import (
	"context"

	"github.com/arloliu/splitsource/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, []types.Split) error = (*NopHooks)(nil).OnSplitsAdded
	_ func(context.Context, string) error        = (*NopHooks)(nil).OnSplitFinished
	_ func(context.Context, int64, int) error    = (*NopHooks)(nil).OnCheckpointAcknowledged
	_ func(context.Context, error) error         = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnSplitsAdded:            h.OnSplitsAdded,
		OnSplitFinished:          h.OnSplitFinished,
		OnCheckpointAcknowledged: h.OnCheckpointAcknowledged,
		OnError:                  h.OnError,
	}
}

// Fill returns a copy of hooks whose nil callbacks are replaced with no-ops.
func Fill(hooks *types.Hooks) types.Hooks {
	out := NewNop()
	if hooks == nil {
		return out
	}
	if hooks.OnSplitsAdded != nil {
		out.OnSplitsAdded = hooks.OnSplitsAdded
	}
	if hooks.OnSplitFinished != nil {
		out.OnSplitFinished = hooks.OnSplitFinished
	}
	if hooks.OnCheckpointAcknowledged != nil {
		out.OnCheckpointAcknowledged = hooks.OnCheckpointAcknowledged
	}
	if hooks.OnError != nil {
		out.OnError = hooks.OnError
	}

	return out
}

// OnSplitsAdded is a no-op implementation.
func (h *NopHooks) OnSplitsAdded(ctx context.Context, splits []types.Split) error {
	return nil
}

// OnSplitFinished is a no-op implementation.
func (h *NopHooks) OnSplitFinished(ctx context.Context, splitID string) error {
	return nil
}

// OnCheckpointAcknowledged is a no-op implementation.
func (h *NopHooks) OnCheckpointAcknowledged(ctx context.Context, checkpointID int64, count int) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(ctx context.Context, err error) error {
	return nil
}
