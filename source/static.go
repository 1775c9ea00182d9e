package source

import (
	"context"
	"sync"

	"github.com/arloliu/splitsource/types"
)

// Static implements a split source over a fixed list of subjects.
type Static struct {
	mu     sync.RWMutex
	splits []types.Split
}

var _ types.SplitSource = (*Static)(nil)

// NewStatic creates a static split source with one split per subject.
//
// Duplicate subjects collapse into one split; order is otherwise preserved.
//
// Parameters:
//   - subjects: Fixed list of subjects
//
// Returns:
//   - *Static: Initialized static source
//
// Example:
//
//	src := source.NewStatic("orders.eu", "orders.us")
//	s, err := splitsource.NewSource[string](cfg, splitsource.StringDeserializer{}, splitsource.WithSplitSource(src))
func NewStatic(subjects ...string) *Static {
	s := &Static{}
	s.Update(subjects...)

	return s
}

// ListSplits returns a copy of the split list.
//
// Returns:
//   - []types.Split: One split per subject
//   - error: Always nil (never fails)
func (s *Static) ListSplits(_ context.Context) ([]types.Split, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]types.Split, len(s.splits))
	copy(result, s.splits)

	return result, nil
}

// Update replaces the subject list.
//
// Splits are fixed once an enumerator has assigned them; Update only affects
// enumerators created afterwards.
func (s *Static) Update(subjects ...string) {
	splits := make([]types.Split, 0, len(subjects))
	for _, subj := range subjects {
		splits = append(splits, types.NewSubjectSplit(subj))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.splits = types.DedupSplits(splits)
}
