package fetcher

import (
	"context"

	"github.com/arloliu/splitsource/types"
)

// SplitReader is the single-split reader a Fetcher drives.
//
// *subscription.SplitReader satisfies this interface.
type SplitReader interface {
	HandleSplitsChanges(ctx context.Context, change types.SplitsChange) error
	Fetch(ctx context.Context) (*types.RecordsBySplits, error)
	NotifyCheckpointComplete(ctx context.Context, splitID string, msgs []types.Message) error
	WakeUp()
	Close() error
}

// ReaderFactory creates a fresh, unassigned SplitReader for a new fetcher.
type ReaderFactory func() (SplitReader, error)

// ConnectionReleaser releases the pooled connection of a split.
//
// *connection.Pool satisfies this interface.
type ConnectionReleaser interface {
	Release(splitID string) bool
}

type nopReleaser struct{}

func (nopReleaser) Release(string) bool { return false }
