package fetcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/arloliu/splitsource/internal/logging"
	"github.com/arloliu/splitsource/internal/metrics"
	"github.com/arloliu/splitsource/types"
)

// DefaultQueueCapacity is the default number of batches buffered between fetchers
// and the pipeline.
const DefaultQueueCapacity = 2

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger types.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.OrNop(logger)
	}
}

// WithMetrics sets the manager metrics collector.
func WithMetrics(mc types.MetricsCollector) Option {
	return func(m *Manager) {
		m.metrics = metrics.OrNop(mc)
	}
}

// WithQueueCapacity sets the capacity of the handoff queue (minimum 1).
func WithQueueCapacity(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.queueCapacity = n
		}
	}
}

// WithConnectionReleaser sets the releaser called when a split's fetcher closes.
func WithConnectionReleaser(r ConnectionReleaser) Option {
	return func(m *Manager) {
		if r != nil {
			m.releaser = r
		}
	}
}

// fetcherTable is the split → fetcher mapping plus the running-flag table.
//
// All fields are guarded by mu. A split id maps to at most one fetcher id and a
// fetcher id is started at most once.
type fetcherTable struct {
	mu           sync.Mutex
	nextID       int
	splitFetcher map[string]int
	running      map[int]bool
	fetchers     map[int]*Fetcher
	closed       bool
}

// Manager owns the fetchers of one source reader.
//
// It guarantees one live fetcher per split, starts fetchers idempotently, routes
// acknowledgments to the owning fetcher's reader, and exposes the bounded queue of
// fetched batches together with the first fetch error.
type Manager struct {
	table fetcherTable

	newReader     ReaderFactory
	releaser      ConnectionReleaser
	queueCapacity int
	queue         chan *types.RecordsBySplits

	ctx    context.Context
	cancel context.CancelFunc

	errMu    sync.Mutex
	firstErr error
	failed   chan struct{}

	logger  types.Logger
	metrics types.MetricsCollector
}

var _ owner = (*Manager)(nil)

// NewManager creates a manager that builds one reader per fetcher with newReader.
//
// Parameters:
//   - newReader: Factory for fresh, unassigned split readers
//   - opts: Optional logger, metrics, queue capacity and connection releaser
//
// Returns:
//   - *Manager: Manager with no fetchers
//
// Example:
//
//	mgr := fetcher.NewManager(func() (fetcher.SplitReader, error) {
//	    return subscription.NewSplitReader(pool, readerCfg)
//	}, fetcher.WithConnectionReleaser(pool), fetcher.WithQueueCapacity(4))
//	defer mgr.Close(ctx)
//	_ = mgr.AddSplits(splits)
//	batch := <-mgr.Queue()
func NewManager(newReader ReaderFactory, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		table: fetcherTable{
			splitFetcher: make(map[string]int),
			running:      make(map[int]bool),
			fetchers:     make(map[int]*Fetcher),
		},
		newReader:     newReader,
		releaser:      nopReleaser{},
		queueCapacity: DefaultQueueCapacity,
		ctx:           ctx,
		cancel:        cancel,
		failed:        make(chan struct{}),
		logger:        logging.NewNop(),
		metrics:       metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.queue = make(chan *types.RecordsBySplits, m.queueCapacity)

	return m
}

// Queue returns the handoff queue of fetched batches.
func (m *Manager) Queue() <-chan *types.RecordsBySplits {
	return m.queue
}

// CheckErrors returns the first error that stopped a fetcher, if any.
func (m *Manager) CheckErrors() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()

	return m.firstErr
}

// Failed is closed when the first fetcher error is recorded.
func (m *Manager) Failed() <-chan struct{} {
	return m.failed
}

// GetOrCreateFetcher returns the live fetcher mapped to splitID, creating a new one
// when none is mapped or the mapped fetcher has shut down.
//
// The lookup and creation happen under one lock: concurrent calls for the same split
// observe the same fetcher.
//
// Returns:
//   - *Fetcher: Fetcher owning splitID (not necessarily started)
//   - error: types.ErrClosed after Close, or the reader factory error
func (m *Manager) GetOrCreateFetcher(splitID string) (*Fetcher, error) {
	m.table.mu.Lock()
	defer m.table.mu.Unlock()

	return m.getOrCreateLocked(splitID)
}

func (m *Manager) getOrCreateLocked(splitID string) (*Fetcher, error) {
	t := &m.table
	if t.closed {
		return nil, types.ErrClosed
	}

	if id, ok := t.splitFetcher[splitID]; ok {
		if f, ok := t.fetchers[id]; ok {
			return f, nil
		}
		// The mapped fetcher has shut down.
		delete(t.running, id)
	}

	if m.newReader == nil {
		return nil, errors.New("split reader factory is required")
	}
	reader, err := m.newReader()
	if err != nil {
		return nil, fmt.Errorf("failed to create split reader for %s: %w", splitID, err)
	}

	t.nextID++
	f := newFetcher(t.nextID, reader, m, m.queue, m.logger, m.metrics)
	t.fetchers[f.id] = f
	t.splitFetcher[splitID] = f.id
	m.metrics.RecordActiveFetchers(len(t.fetchers))
	m.logger.Debug("fetcher created", "fetcher", f.id, "split", splitID)

	return f, nil
}

// startLocked starts f unless it is already marked running.
func (m *Manager) startLocked(f *Fetcher) {
	if m.table.running[f.id] {
		return
	}
	m.table.running[f.id] = true
	f.start(m.ctx)
}

// AddSplits assigns each split to its own fetcher and starts that fetcher.
//
// Adding a split that already has a live fetcher is a no-op for that split.
//
// Parameters:
//   - splits: Splits newly assigned to this reader
//
// Returns:
//   - error: types.ErrClosed after Close, or a reader factory error
func (m *Manager) AddSplits(splits []types.Split) error {
	m.table.mu.Lock()
	defer m.table.mu.Unlock()

	for _, split := range splits {
		f, err := m.getOrCreateLocked(split.ID)
		if err != nil {
			return err
		}
		f.assign(split)
		m.startLocked(f)
	}

	return nil
}

// CloseFetcher removes the mapping for splitID, shuts its fetcher down and releases
// the split's pooled connection. Unknown split ids are a no-op.
//
// While an acknowledgment for the fetcher is in flight, the shutdown and the release
// are postponed until the last one ends. CloseFetcher does not wait for the fetcher
// goroutine; Close does.
func (m *Manager) CloseFetcher(splitID string) {
	m.table.mu.Lock()
	id, ok := m.table.splitFetcher[splitID]
	if !ok {
		m.table.mu.Unlock()
		return
	}
	delete(m.table.splitFetcher, splitID)
	delete(m.table.running, id)
	f := m.table.fetchers[id]
	delete(m.table.fetchers, id)
	m.metrics.RecordActiveFetchers(len(m.table.fetchers))
	m.table.mu.Unlock()

	if f != nil && f.deferClose(splitID) {
		// The reader and its connection are still publishing acks.
		m.logger.Debug("fetcher close deferred", "fetcher", id, "split", splitID)
		return
	}
	if f != nil {
		f.Shutdown()
	}
	m.releaser.Release(splitID)
	m.logger.Debug("fetcher closed", "fetcher", id, "split", splitID)
}

// finishDeferredClose completes a CloseFetcher that waited for acknowledgments.
func (m *Manager) finishDeferredClose(f *Fetcher, splitIDs []string) {
	f.Shutdown()
	for _, id := range splitIDs {
		m.releaser.Release(id)
	}
	m.logger.Debug("fetcher closed", "fetcher", f.id, "splits", splitIDs)
}

// AcknowledgeMessages forwards each split's pending messages to the reader of the
// split's fetcher, then starts that fetcher.
//
// Splits are processed in id order. A split without a live fetcher (e.g. one that
// finished) gets a new fetcher for the acknowledgment; it retires once idle. The
// first acknowledgment failure is returned without retrying the remaining splits.
//
// Parameters:
//   - ctx: Context for the acknowledgment publishes
//   - pending: Split id → messages in the order they were fetched
//
// Returns:
//   - error: Wrapped types.ErrAcknowledgment, types.ErrClosed, or a reader factory error
func (m *Manager) AcknowledgeMessages(ctx context.Context, pending map[string][]types.Message) error {
	ids := make([]string, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, splitID := range ids {
		msgs := pending[splitID]
		if len(msgs) == 0 {
			continue
		}

		m.table.mu.Lock()
		f, err := m.getOrCreateLocked(splitID)
		if err != nil {
			m.table.mu.Unlock()
			return err
		}
		f.beginAck()
		m.table.mu.Unlock()

		err = f.reader.NotifyCheckpointComplete(ctx, splitID, msgs)

		m.table.mu.Lock()
		closeNow, released := f.endAck()
		if err == nil && !m.table.closed && m.table.fetchers[f.id] == f {
			m.startLocked(f)
		}
		m.table.mu.Unlock()
		if closeNow {
			m.finishDeferredClose(f, released)
		} else {
			f.kick()
		}

		if err != nil {
			m.logger.Error("acknowledgment failed", "split", splitID, "count", len(msgs), "error", err)
			return err
		}
	}

	return nil
}

// FetcherID returns the id of the fetcher mapped to splitID.
func (m *Manager) FetcherID(splitID string) (int, bool) {
	m.table.mu.Lock()
	defer m.table.mu.Unlock()

	id, ok := m.table.splitFetcher[splitID]

	return id, ok
}

// ActiveFetchers returns the number of live fetchers.
func (m *Manager) ActiveFetchers() int {
	m.table.mu.Lock()
	defer m.table.mu.Unlock()

	return len(m.table.fetchers)
}

// retireIfIdle removes an idle fetcher and releases the connections of its splits.
func (m *Manager) retireIfIdle(f *Fetcher) bool {
	m.table.mu.Lock()
	if m.table.fetchers[f.id] != f {
		// Already removed by CloseFetcher or Close. A deferred close still waits
		// for its acknowledgments.
		m.table.mu.Unlock()
		return !f.acking()
	}
	if !f.idle() {
		m.table.mu.Unlock()
		return false
	}

	splitIDs := m.forgetLocked(f)
	m.table.mu.Unlock()

	for _, id := range splitIDs {
		m.releaser.Release(id)
	}

	return true
}

// fetcherFailed records the first error and forgets f. The split mapping is kept so
// CloseFetcher still releases the split's connection.
func (m *Manager) fetcherFailed(f *Fetcher, err error) {
	m.errMu.Lock()
	if m.firstErr == nil {
		m.firstErr = err
		close(m.failed)
	}
	m.errMu.Unlock()

	m.logger.Error("fetcher stopped on error", "fetcher", f.id, "splits", f.Splits(), "error", err)

	m.table.mu.Lock()
	if m.table.fetchers[f.id] == f {
		delete(m.table.fetchers, f.id)
		delete(m.table.running, f.id)
		m.metrics.RecordActiveFetchers(len(m.table.fetchers))
	}
	m.table.mu.Unlock()
}

// forgetLocked drops f and every split mapped to it, returning those split ids.
func (m *Manager) forgetLocked(f *Fetcher) []string {
	var splitIDs []string
	for splitID, id := range m.table.splitFetcher {
		if id == f.id {
			splitIDs = append(splitIDs, splitID)
			delete(m.table.splitFetcher, splitID)
		}
	}
	delete(m.table.fetchers, f.id)
	delete(m.table.running, f.id)
	m.metrics.RecordActiveFetchers(len(m.table.fetchers))

	return splitIDs
}

// Close shuts down every fetcher, waits for them to stop, and releases their
// connections. Subsequent calls are no-ops.
//
// Parameters:
//   - ctx: Bounds the wait for fetcher goroutines
//
// Returns:
//   - error: ctx.Err() if fetchers did not stop in time
func (m *Manager) Close(ctx context.Context) error {
	m.table.mu.Lock()
	if m.table.closed {
		m.table.mu.Unlock()
		return nil
	}
	m.table.closed = true

	fetchers := make([]*Fetcher, 0, len(m.table.fetchers))
	for _, f := range m.table.fetchers {
		fetchers = append(fetchers, f)
	}
	splitIDs := make([]string, 0, len(m.table.splitFetcher))
	for id := range m.table.splitFetcher {
		splitIDs = append(splitIDs, id)
	}
	clear(m.table.fetchers)
	clear(m.table.running)
	clear(m.table.splitFetcher)
	m.metrics.RecordActiveFetchers(0)
	m.table.mu.Unlock()

	m.cancel()
	for _, f := range fetchers {
		f.Shutdown()
	}

	var waitErr error
	for _, f := range fetchers {
		select {
		case <-f.Done():
		case <-ctx.Done():
			waitErr = ctx.Err()
		}
		if waitErr != nil {
			break
		}
	}

	for _, id := range splitIDs {
		m.releaser.Release(id)
	}

	m.logger.Info("fetcher manager closed", "fetchers", len(fetchers))

	return waitErr
}
