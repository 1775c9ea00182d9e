package enumerator

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/arloliu/splitsource/types"
)

// splitEntry is the enumerator's view of one split.
type splitEntry struct {
	split  types.Split
	state  types.SplitState
	reader string
}

// Enumerator tracks splits and their assignment to readers.
//
// State machine: Uninitialized → Assigned. Per split: Unassigned → Assigned →
// Running → Finished. All methods are safe for concurrent use.
type Enumerator struct {
	opts options

	mu      sync.Mutex
	state   types.EnumeratorState
	order   []string // split ids in snapshot order
	entries map[string]*splitEntry
	readers []string
}

// New creates an enumerator tracking splits (duplicates collapse, order is kept).
//
// Parameters:
//   - splits: Initial split set, e.g. from a types.SplitSource
//   - opts: Optional strategy, boundedness, logger and metrics
//
// Returns:
//   - *Enumerator: Uninitialized enumerator with every split unassigned
//
// Example:
//
//	enum := enumerator.New(splits, enumerator.WithStrategy(strategy.NewConsistentHash()))
//	_ = enum.RegisterReader("reader-0")
//	assignments, err := enum.Assign()
func New(splits []types.Split, opts ...Option) *Enumerator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Enumerator{
		opts:    o,
		state:   types.EnumeratorUninitialized,
		entries: make(map[string]*splitEntry),
	}
	for _, s := range types.DedupSplits(splits) {
		e.order = append(e.order, s.ID)
		e.entries[s.ID] = &splitEntry{split: s, state: types.SplitUnassigned}
	}
	o.metrics.RecordSplitCount(len(e.order))

	return e
}

// Restore creates an enumerator tracking exactly the splits of a checkpoint snapshot.
//
// Assignment is not part of the snapshot: restored splits start unassigned and are
// handed out again by Assign.
func Restore(snapshot []types.Split, opts ...Option) *Enumerator {
	e := New(snapshot, opts...)
	e.opts.logger.Info("enumerator restored from checkpoint", "splits", len(e.order))

	return e
}

// State returns the enumerator state.
func (e *Enumerator) State() types.EnumeratorState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// SplitState returns the state of splitID.
func (e *Enumerator) SplitState(splitID string) (types.SplitState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.entries[splitID]
	if !ok {
		return types.SplitUnassigned, false
	}

	return entry.state, true
}

// Splits returns every tracked split, including finished ones, in snapshot order.
func (e *Enumerator) Splits() []types.Split {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.Split, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.entries[id].split)
	}

	return out
}

// Readers returns the registered reader ids in registration order.
func (e *Enumerator) Readers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.readers)
}

// Assignments returns reader id → splits currently owned (not finished).
func (e *Enumerator) Assignments() map[string][]types.Split {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string][]types.Split, len(e.readers))
	for _, r := range e.readers {
		out[r] = []types.Split{}
	}
	for _, id := range e.order {
		entry := e.entries[id]
		if entry.reader != "" && entry.state != types.SplitFinished {
			out[entry.reader] = append(out[entry.reader], entry.split)
		}
	}

	return out
}

// RegisterReader adds a reader eligible for assignment. Registering twice is a no-op.
func (e *Enumerator) RegisterReader(readerID string) error {
	if readerID == "" {
		return errors.New("reader id is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if slices.Contains(e.readers, readerID) {
		return nil
	}
	e.readers = append(e.readers, readerID)
	e.opts.logger.Debug("reader registered", "reader", readerID, "readers", len(e.readers))

	return nil
}

// RemoveReader unregisters a reader and returns its unfinished splits to the
// unassigned pool. Use AssignPending to hand them out again.
//
// Returns:
//   - []types.Split: Splits the reader owned
func (e *Enumerator) RemoveReader(readerID string) []types.Split {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := slices.Index(e.readers, readerID)
	if idx < 0 {
		return nil
	}
	e.readers = slices.Delete(e.readers, idx, idx+1)

	var released []types.Split
	for _, id := range e.order {
		entry := e.entries[id]
		if entry.reader == readerID && entry.state != types.SplitFinished {
			entry.reader = ""
			entry.state = types.SplitUnassigned
			released = append(released, entry.split)
		}
	}
	e.opts.logger.Info("reader removed", "reader", readerID, "released", types.SplitIDs(released))

	return released
}

// Assign performs the initial static assignment of every split to the registered
// readers and moves the enumerator to Assigned.
//
// Returns:
//   - map[string][]types.Split: Reader id → splits to hand to that reader
//   - error: types.ErrAlreadyAssigned on a second call, types.ErrNoReadersAvailable
//     without readers, or a strategy error
func (e *Enumerator) Assign() (map[string][]types.Split, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == types.EnumeratorAssigned {
		return nil, types.ErrAlreadyAssigned
	}

	assignments, err := e.assignUnassignedLocked()
	if err != nil {
		return nil, err
	}
	e.state = types.EnumeratorAssigned
	e.opts.logger.Info("splits assigned", "readers", len(e.readers), "splits", len(e.order))

	return assignments, nil
}

// AssignPending assigns splits that are unassigned after Assign, e.g. splits added
// back or released by RemoveReader. Before Assign it behaves like Assign.
//
// Returns:
//   - map[string][]types.Split: Reader id → newly assigned splits (empty when nothing is pending)
//   - error: types.ErrNoReadersAvailable when splits are pending but no reader is registered
func (e *Enumerator) AssignPending() (map[string][]types.Split, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	assignments, err := e.assignUnassignedLocked()
	if err != nil {
		return nil, err
	}
	e.state = types.EnumeratorAssigned

	return assignments, nil
}

func (e *Enumerator) assignUnassignedLocked() (map[string][]types.Split, error) {
	var pending []types.Split
	for _, id := range e.order {
		if entry := e.entries[id]; entry.state == types.SplitUnassigned {
			pending = append(pending, entry.split)
		}
	}
	if len(pending) == 0 {
		return map[string][]types.Split{}, nil
	}
	if len(e.readers) == 0 {
		return nil, types.ErrNoReadersAvailable
	}

	assignments, err := e.opts.strategy.Assign(slices.Clone(e.readers), pending)
	if err != nil {
		return nil, fmt.Errorf("split assignment failed: %w", err)
	}

	for reader, splits := range assignments {
		if !slices.Contains(e.readers, reader) {
			return nil, fmt.Errorf("split assignment returned unknown reader %q", reader)
		}
		for _, s := range splits {
			entry, ok := e.entries[s.ID]
			if !ok || entry.state != types.SplitUnassigned {
				return nil, fmt.Errorf("split assignment returned unexpected split %q", s.ID)
			}
		}
	}
	for reader, splits := range assignments {
		for _, s := range splits {
			entry := e.entries[s.ID]
			entry.reader = reader
			entry.state = types.SplitAssigned
		}
	}

	return assignments, nil
}

// MarkRunning records that readerID started fetching the given splits.
//
// Returns:
//   - error: types.ErrUnknownSplit if a split is not tracked or not owned by readerID
func (e *Enumerator) MarkRunning(readerID string, splitIDs ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range splitIDs {
		entry, ok := e.entries[id]
		if !ok || entry.reader != readerID {
			return fmt.Errorf("%w: %s not assigned to %s", types.ErrUnknownSplit, id, readerID)
		}
	}
	for _, id := range splitIDs {
		if entry := e.entries[id]; entry.state == types.SplitAssigned {
			entry.state = types.SplitRunning
		}
	}

	return nil
}

// HandleSplitFinished records a finished split. In bounded mode the split is marked
// Finished and leaves the checkpoint snapshot; unbounded enumerators ignore the report.
//
// Returns:
//   - error: types.ErrUnknownSplit for untracked splits
func (e *Enumerator) HandleSplitFinished(splitID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.entries[splitID]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnknownSplit, splitID)
	}
	if e.opts.boundedness != types.Bounded {
		e.opts.logger.Warn("ignoring finished split in unbounded mode", "split", splitID)
		return nil
	}
	if entry.state == types.SplitFinished {
		return nil
	}

	entry.state = types.SplitFinished
	e.opts.metrics.RecordSplitFinished(splitID)
	e.opts.logger.Info("split finished", "split", splitID, "reader", entry.reader)

	return nil
}

// AddSplitsBack returns splits from a failed reader to the unassigned pool.
// Splits the enumerator did not track are added to it.
func (e *Enumerator) AddSplitsBack(splits []types.Split, readerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range types.DedupSplits(splits) {
		entry, ok := e.entries[s.ID]
		if !ok {
			e.order = append(e.order, s.ID)
			e.entries[s.ID] = &splitEntry{split: s, state: types.SplitUnassigned}
			continue
		}
		if entry.state == types.SplitFinished {
			continue
		}
		entry.split = s
		entry.reader = ""
		entry.state = types.SplitUnassigned
	}
	e.opts.metrics.RecordSplitCount(len(e.order))
	e.opts.logger.Info("splits added back", "reader", readerID, "splits", types.SplitIDs(splits))
}

// SnapshotState returns the unfinished splits in snapshot order, for serialization
// with serializer.CheckpointSerializer.
func (e *Enumerator) SnapshotState() []types.Split {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.Split, 0, len(e.order))
	for _, id := range e.order {
		if entry := e.entries[id]; entry.state != types.SplitFinished {
			out = append(out, entry.split)
		}
	}

	return out
}

// Finished reports whether every tracked split has finished (bounded mode).
func (e *Enumerator) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for entry := range maps.Values(e.entries) {
		if entry.state != types.SplitFinished {
			return false
		}
	}

	return len(e.entries) > 0
}
