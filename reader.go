package splitsource

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/arloliu/splitsource/connection"
	"github.com/arloliu/splitsource/fetcher"
	"github.com/arloliu/splitsource/types"
)

// Record is one decoded message handed to the pipeline.
type Record[T any] struct {
	SplitID string
	Subject string
	Value   T
}

// epoch holds the messages polled between two snapshots, frozen under the id of
// the checkpoint that took the second snapshot.
type epoch struct {
	checkpointID int64
	pending      map[string][]types.Message
}

type readerOptions struct {
	shutdownTimeout time.Duration
	hooks           Hooks
	logger          Logger
	metrics         MetricsCollector
}

// Reader is the pipeline side of a source: it polls batches fetched by its
// fetchers, decodes them, and acknowledges them once the checkpoint covering them
// completes.
//
// Messages polled after the snapshot of checkpoint N are acknowledged only when a
// checkpoint M > N completes. Poll is meant to be called from a single goroutine;
// the other methods are safe for concurrent use.
type Reader[T any] struct {
	readerCtx ReaderContext
	deser     PayloadDeserializer[T]
	pool      *connection.Pool
	manager   *fetcher.Manager
	opts      readerOptions

	wake chan struct{}
	done chan struct{}

	// ackMu serializes checkpoint completions.
	ackMu sync.Mutex

	mu       sync.Mutex
	splits   map[string]types.Split
	current  map[string][]types.Message
	epochs   []epoch
	acking   int // leading epochs being acknowledged
	started  bool
	closed   bool
	finished int
}

func newReader[T any](readerCtx ReaderContext, deser PayloadDeserializer[T], pool *connection.Pool,
	manager *fetcher.Manager, opts readerOptions,
) *Reader[T] {
	return &Reader[T]{
		readerCtx: readerCtx,
		deser:     deser,
		pool:      pool,
		manager:   manager,
		opts:      opts,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		splits:    make(map[string]types.Split),
		current:   make(map[string][]types.Message),
	}
}

// ID returns the reader id.
func (r *Reader[T]) ID() string {
	return r.readerCtx.ReaderID()
}

// Start makes the reader accept splits and polls.
//
// Returns:
//   - error: ErrAlreadyStarted on a second call, ErrClosed after Close
func (r *Reader[T]) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true
	r.opts.logger.Info("source reader started", "reader", r.ID())

	return nil
}

// Splits returns the reader's unfinished splits ordered by id.
func (r *Reader[T]) Splits() []Split {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.splitsLocked()
}

func (r *Reader[T]) splitsLocked() []Split {
	out := slices.Collect(maps.Values(r.splits))
	slices.SortFunc(out, types.Split.Compare)

	return out
}

// AddSplits hands splits assigned by the enumerator to one fetcher each and reports
// them as started.
//
// Parameters:
//   - ctx: Context for the reader context report
//   - splits: Newly assigned splits
//
// Returns:
//   - error: ErrNotStarted, ErrClosed, a fetcher manager error or a report error
func (r *Reader[T]) AddSplits(ctx context.Context, splits []Split) error {
	if len(splits) == 0 {
		return nil
	}

	r.mu.Lock()
	if err := r.usableLocked(); err != nil {
		r.mu.Unlock()
		return err
	}
	splits = types.DedupSplits(splits)
	for _, s := range splits {
		r.splits[s.ID] = s
	}
	r.mu.Unlock()

	if err := r.manager.AddSplits(splits); err != nil {
		return err
	}

	ids := types.SplitIDs(splits)
	if err := r.readerCtx.SplitsStarted(ctx, ids); err != nil {
		return fmt.Errorf("failed to report started splits %v: %w", ids, err)
	}
	r.opts.logger.Info("splits added", "reader", r.ID(), "splits", ids)
	r.callHook("OnSplitsAdded", r.opts.hooks.OnSplitsAdded(ctx, splits))

	return nil
}

func (r *Reader[T]) usableLocked() error {
	if r.closed {
		return ErrClosed
	}
	if !r.started {
		return ErrNotStarted
	}

	return nil
}

// Poll waits for the next fetched batch and returns its decoded records.
//
// The returned messages join the pending acknowledgment set of the current epoch.
// Splits the batch reports as finished are closed and reported to the reader
// context. Poll returns an empty slice and nil error when interrupted by WakeUp or
// when the batch only carried finished splits.
//
// Parameters:
//   - ctx: Bounds the wait
//
// Returns:
//   - []Record[T]: Decoded records grouped by split, in fetch order within a split
//   - error: ctx.Err(), ErrClosed, the first fetcher error, or a decode error
func (r *Reader[T]) Poll(ctx context.Context) ([]Record[T], error) {
	r.mu.Lock()
	err := r.usableLocked()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := r.manager.CheckErrors(); err != nil {
		return nil, r.surface(ctx, err)
	}

	var batch *types.RecordsBySplits
	select {
	case batch = <-r.manager.Queue():
	case <-r.manager.Failed():
		return nil, r.surface(ctx, r.manager.CheckErrors())
	case <-r.wake:
		return []Record[T]{}, nil
	case <-r.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	records, err := r.decode(batch)
	if err != nil {
		return nil, r.surface(ctx, err)
	}

	r.mu.Lock()
	for splitID, msgs := range batch.Records {
		r.current[splitID] = append(r.current[splitID], msgs...)
	}
	r.opts.metrics.RecordPendingAcks(r.pendingLocked())
	r.mu.Unlock()

	for _, splitID := range batch.Finished {
		r.finishSplit(ctx, splitID)
	}

	return records, nil
}

func (r *Reader[T]) decode(batch *types.RecordsBySplits) ([]Record[T], error) {
	splitIDs := slices.Sorted(maps.Keys(batch.Records))
	records := make([]Record[T], 0, batch.Len())
	for _, splitID := range splitIDs {
		for _, msg := range batch.Records[splitID] {
			v, err := r.deser.Deserialize(msg.Subject(), msg.Data())
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize message of split %s: %w", splitID, err)
			}
			records = append(records, Record[T]{SplitID: splitID, Subject: msg.Subject(), Value: v})
		}
	}

	return records, nil
}

func (r *Reader[T]) finishSplit(ctx context.Context, splitID string) {
	r.mu.Lock()
	_, owned := r.splits[splitID]
	delete(r.splits, splitID)
	if owned {
		r.finished++
	}
	r.mu.Unlock()
	if !owned {
		return
	}

	r.manager.CloseFetcher(splitID)
	if err := r.readerCtx.SplitFinished(ctx, splitID); err != nil {
		r.opts.logger.Warn("failed to report finished split", "reader", r.ID(), "split", splitID, "error", err)
	}
	r.opts.logger.Info("split finished", "reader", r.ID(), "split", splitID)
	r.callHook("OnSplitFinished", r.opts.hooks.OnSplitFinished(ctx, splitID))
}

// FinishedSplits returns how many splits of this reader finished.
func (r *Reader[T]) FinishedSplits() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.finished
}

// SnapshotState freezes the messages polled since the previous snapshot under
// checkpointID and returns the reader's unfinished splits.
//
// Checkpoint ids are expected to increase. A snapshot with an id not above the
// latest frozen epoch merges into that epoch.
func (r *Reader[T]) SnapshotState(checkpointID int64) []Split {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.current) > 0 {
		if n := len(r.epochs); n > r.acking && r.epochs[n-1].checkpointID >= checkpointID {
			last := &r.epochs[n-1]
			for splitID, msgs := range r.current {
				last.pending[splitID] = append(last.pending[splitID], msgs...)
			}
		} else {
			r.epochs = append(r.epochs, epoch{checkpointID: checkpointID, pending: r.current})
		}
		r.current = make(map[string][]types.Message)
	}
	r.opts.logger.Debug("reader snapshot", "reader", r.ID(), "checkpoint", checkpointID, "epochs", len(r.epochs))

	return r.splitsLocked()
}

// PendingAcks returns the number of polled messages not yet acknowledged.
func (r *Reader[T]) PendingAcks() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.pendingLocked()
}

func (r *Reader[T]) pendingLocked() int {
	n := 0
	for _, msgs := range r.current {
		n += len(msgs)
	}
	for _, e := range r.epochs {
		for _, msgs := range e.pending {
			n += len(msgs)
		}
	}

	return n
}

// NotifyCheckpointComplete acknowledges every message frozen by snapshots with an
// id up to checkpointID, oldest epoch first.
//
// Messages polled after the latest snapshot are not acknowledged. On failure the
// epochs stay pending and the error is returned; the pipeline must treat it as
// fatal for this checkpoint.
//
// Parameters:
//   - ctx: Context for the acknowledgment publishes
//   - checkpointID: Id of the completed checkpoint
//
// Returns:
//   - error: Wrapped ErrAcknowledgment, ErrClosed, or a fetcher manager error
func (r *Reader[T]) NotifyCheckpointComplete(ctx context.Context, checkpointID int64) error {
	r.ackMu.Lock()
	defer r.ackMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	n := 0
	merged := make(map[string][]types.Message)
	for _, e := range r.epochs {
		if e.checkpointID > checkpointID {
			break
		}
		for splitID, msgs := range e.pending {
			merged[splitID] = append(merged[splitID], msgs...)
		}
		n++
	}
	r.acking = n
	r.mu.Unlock()

	if n == 0 {
		return nil
	}

	if err := r.manager.AcknowledgeMessages(ctx, merged); err != nil {
		r.mu.Lock()
		r.acking = 0
		r.mu.Unlock()

		return r.surface(ctx, fmt.Errorf("checkpoint %d: %w", checkpointID, err))
	}

	count := 0
	for _, msgs := range merged {
		count += len(msgs)
	}

	r.mu.Lock()
	r.epochs = slices.Delete(r.epochs, 0, n)
	r.acking = 0
	r.opts.metrics.RecordPendingAcks(r.pendingLocked())
	r.mu.Unlock()

	r.opts.logger.Debug("checkpoint acknowledged", "reader", r.ID(), "checkpoint", checkpointID, "messages", count)
	r.callHook("OnCheckpointAcknowledged", r.opts.hooks.OnCheckpointAcknowledged(ctx, checkpointID, count))

	return nil
}

// WakeUp interrupts a blocked Poll, which returns an empty result.
func (r *Reader[T]) WakeUp() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Close stops every fetcher and closes the reader's connections.
//
// Pending acknowledgments are dropped; the broker redelivers those messages after
// the consumer's AckWait. Close is idempotent.
//
// Parameters:
//   - ctx: Bounds the wait for fetchers (further limited by Config.ShutdownTimeout)
//
// Returns:
//   - error: Error from stopping fetchers in time
func (r *Reader[T]) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	dropped := r.pendingLocked()
	r.mu.Unlock()

	if r.opts.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.shutdownTimeout)
		defer cancel()
	}

	err := r.manager.Close(ctx)
	r.pool.Close()
	r.opts.logger.Info("source reader closed", "reader", r.ID(), "droppedAcks", dropped)

	return err
}

// surface reports err to the OnError hook and returns it.
func (r *Reader[T]) surface(ctx context.Context, err error) error {
	r.opts.logger.Error("source reader error", "reader", r.ID(), "error", err)
	r.callHook("OnError", r.opts.hooks.OnError(ctx, err))

	return err
}

func (r *Reader[T]) callHook(name string, err error) {
	if err != nil {
		r.opts.logger.Warn("hook returned error", "hook", name, "reader", r.ID(), "error", err)
	}
}
