package fetcher

import (
	"context"
	"sync"

	"github.com/arloliu/splitsource/types"
)

// Fetcher close reasons reported to metrics.
const (
	closeReasonIdle     = "idle"
	closeReasonShutdown = "shutdown"
	closeReasonError    = "error"
)

// owner receives lifecycle callbacks from a running Fetcher.
type owner interface {
	// retireIfIdle removes f from the owner's tables when it has no work left.
	retireIfIdle(f *Fetcher) bool
	// fetcherFailed records err and forgets f.
	fetcherFailed(f *Fetcher, err error)
}

// Fetcher drives one SplitReader in its own goroutine.
//
// Splits handed to a Fetcher are registered with its reader from the fetch goroutine.
// Fetched batches are pushed to the shared queue; the goroutine blocks while the queue
// is full.
type Fetcher struct {
	id      int
	reader  SplitReader
	owner   owner
	queue   chan<- *types.RecordsBySplits
	logger  types.Logger
	metrics types.MetricsCollector

	wake chan struct{}
	done chan struct{}

	mu       sync.Mutex
	assigned map[string]types.Split
	pending  []types.Split
	inflight int      // acknowledgments in progress
	closing  bool     // closed by the manager while acknowledgments were in flight
	released []string // split connections to release after the last acknowledgment
	started  bool
	cancel   context.CancelFunc

	shutdownOnce sync.Once
}

func newFetcher(id int, reader SplitReader, o owner, queue chan<- *types.RecordsBySplits, logger types.Logger, mc types.MetricsCollector) *Fetcher {
	return &Fetcher{
		id:       id,
		reader:   reader,
		owner:    o,
		queue:    queue,
		logger:   logger,
		metrics:  mc,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		assigned: make(map[string]types.Split),
	}
}

// ID returns the fetcher id, unique within its Manager.
func (f *Fetcher) ID() int {
	return f.id
}

// Reader returns the SplitReader driven by this fetcher.
func (f *Fetcher) Reader() SplitReader {
	return f.reader
}

// Done is closed once the fetcher has stopped and closed its reader.
func (f *Fetcher) Done() <-chan struct{} {
	return f.done
}

// Splits returns the ids of the splits assigned to this fetcher, registered or pending.
func (f *Fetcher) Splits() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.assigned)+len(f.pending))
	for id := range f.assigned {
		ids = append(ids, id)
	}
	for _, s := range f.pending {
		ids = append(ids, s.ID)
	}

	return ids
}

// assign queues split for registration. Duplicates are ignored.
func (f *Fetcher) assign(split types.Split) {
	f.mu.Lock()
	if _, ok := f.assigned[split.ID]; ok {
		f.mu.Unlock()
		return
	}
	for _, p := range f.pending {
		if p.ID == split.ID {
			f.mu.Unlock()
			return
		}
	}
	f.pending = append(f.pending, split)
	f.mu.Unlock()

	f.kick()
}

// idle reports whether the fetcher has neither splits nor acknowledgments in progress.
func (f *Fetcher) idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.assigned) == 0 && len(f.pending) == 0 && f.inflight == 0
}

func (f *Fetcher) beginAck() {
	f.mu.Lock()
	f.inflight++
	f.mu.Unlock()
}

// endAck ends one acknowledgment. When it was the last one of a fetcher whose
// close was deferred, it returns true and the split ids to release.
func (f *Fetcher) endAck() (bool, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inflight--
	if f.inflight > 0 || !f.closing {
		return false, nil
	}
	f.closing = false
	released := f.released
	f.released = nil

	return true, released
}

// deferClose postpones the shutdown of f and the release of splitID until the
// acknowledgments in flight end. It returns false when none are in flight.
func (f *Fetcher) deferClose(splitID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inflight == 0 {
		return false
	}
	f.closing = true
	f.released = append(f.released, splitID)

	return true
}

func (f *Fetcher) acking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.inflight > 0
}

// kick wakes an idle fetch loop.
func (f *Fetcher) kick() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// start launches the fetch goroutine. It returns false if the fetcher already
// started or was shut down.
func (f *Fetcher) start(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started {
		return false
	}
	f.started = true

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.metrics.RecordFetcherStarted()

	go f.run(runCtx)

	return true
}

// Shutdown stops the fetch loop and interrupts an in-flight fetch. The reader is
// closed by the exiting goroutine, or here if the fetcher never started. Only the
// first call has any effect; use Done to wait for completion.
func (f *Fetcher) Shutdown() {
	f.shutdownOnce.Do(func() {
		f.mu.Lock()
		started := f.started
		f.started = true // a stopped fetcher never starts
		cancel := f.cancel
		f.mu.Unlock()

		if !started {
			f.closeReader(closeReasonShutdown)
			return
		}

		cancel()
		f.reader.WakeUp()
	})
}

func (f *Fetcher) closeReader(reason string) {
	if err := f.reader.Close(); err != nil {
		f.logger.Warn("failed to close split reader", "fetcher", f.id, "error", err)
	}
	f.metrics.RecordFetcherClosed(reason)
	close(f.done)
}

// takePending moves pending splits to the assigned set and returns them.
func (f *Fetcher) takePending() []types.Split {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pending) == 0 {
		return nil
	}
	added := f.pending
	f.pending = nil
	for _, s := range added {
		f.assigned[s.ID] = s
	}

	return added
}

func (f *Fetcher) hasSplits() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.assigned) > 0 || len(f.pending) > 0
}

func (f *Fetcher) removeSplits(ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range ids {
		delete(f.assigned, id)
	}
}

// run is the fetch loop: register new splits, fetch, hand off, repeat.
func (f *Fetcher) run(ctx context.Context) {
	reason := closeReasonShutdown
	defer func() { f.closeReader(reason) }()

	f.logger.Debug("fetcher started", "fetcher", f.id)

	for {
		if ctx.Err() != nil {
			return
		}

		if added := f.takePending(); len(added) > 0 {
			if err := f.reader.HandleSplitsChanges(ctx, types.NewSplitsAddition(added...)); err != nil {
				if ctx.Err() != nil {
					return
				}
				reason = closeReasonError
				f.owner.fetcherFailed(f, err)

				return
			}
		}

		if !f.hasSplits() {
			if f.owner.retireIfIdle(f) {
				reason = closeReasonIdle
				f.logger.Debug("fetcher retired", "fetcher", f.id)

				return
			}

			select {
			case <-ctx.Done():
				return
			case <-f.wake:
			}

			continue
		}

		records, err := f.reader.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			reason = closeReasonError
			f.owner.fetcherFailed(f, err)

			return
		}

		if len(records.Finished) > 0 {
			f.removeSplits(records.Finished)
		}
		if records.IsEmpty() {
			continue
		}

		select {
		case f.queue <- records:
		case <-ctx.Done():
			return
		}
	}
}
