package types

import "context"

// Hooks are optional callbacks for source reader lifecycle events.
//
// Hooks run synchronously on the goroutine that triggered the event. Errors
// returned by hooks are logged and never change the outcome of the operation.
type Hooks struct {
	// OnSplitsAdded is called after splits were handed to the reader's fetchers.
	OnSplitsAdded func(ctx context.Context, splits []Split) error

	// OnSplitFinished is called when a bounded split reached its end.
	OnSplitFinished func(ctx context.Context, splitID string) error

	// OnCheckpointAcknowledged is called after the pending messages of every
	// epoch up to checkpointID were acknowledged.
	OnCheckpointAcknowledged func(ctx context.Context, checkpointID int64, count int) error

	// OnError is called when a fetch or acknowledgment error surfaces.
	OnError func(ctx context.Context, err error) error
}
