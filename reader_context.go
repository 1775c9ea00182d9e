package splitsource

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/arloliu/splitsource/enumerator"
)

// ReaderContext connects a Reader to the enumerator that owns its splits.
//
// Implementations forward reports to the enumerator, in-process or over a
// coordination channel.
type ReaderContext interface {
	// ReaderID returns the id the enumerator assigns splits to.
	ReaderID() string

	// SplitsStarted reports that the reader's fetchers took over the given splits.
	SplitsStarted(ctx context.Context, splitIDs []string) error

	// SplitFinished reports that a bounded split reached its end.
	SplitFinished(ctx context.Context, splitID string) error
}

// LocalReaderContext is a ReaderContext for a reader running in the same process
// as its enumerator.
type LocalReaderContext struct {
	id   string
	enum *enumerator.Enumerator
}

var _ ReaderContext = (*LocalReaderContext)(nil)

// NewLocalReaderContext registers a reader with enum and returns its context.
//
// Parameters:
//   - enum: Enumerator owning the splits
//   - readerID: Reader id (a "reader-<uuid>" id is generated when empty)
//
// Returns:
//   - *LocalReaderContext: Context bound to enum
//   - error: Registration error
//
// Example:
//
//	rctx, err := splitsource.NewLocalReaderContext(enum, "")
//	reader, err := src.CreateReader(rctx)
//	assignments, err := enum.Assign()
//	err = reader.AddSplits(ctx, assignments[rctx.ReaderID()])
func NewLocalReaderContext(enum *enumerator.Enumerator, readerID string) (*LocalReaderContext, error) {
	if enum == nil {
		return nil, errors.New("enumerator is required")
	}
	if readerID == "" {
		readerID = "reader-" + uuid.NewString()
	}
	if err := enum.RegisterReader(readerID); err != nil {
		return nil, err
	}

	return &LocalReaderContext{id: readerID, enum: enum}, nil
}

// ReaderID returns the registered reader id.
func (c *LocalReaderContext) ReaderID() string {
	return c.id
}

// SplitsStarted marks the splits running in the enumerator.
func (c *LocalReaderContext) SplitsStarted(_ context.Context, splitIDs []string) error {
	return c.enum.MarkRunning(c.id, splitIDs...)
}

// SplitFinished reports the finished split to the enumerator.
func (c *LocalReaderContext) SplitFinished(_ context.Context, splitID string) error {
	return c.enum.HandleSplitFinished(splitID)
}
