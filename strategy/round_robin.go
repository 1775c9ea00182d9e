package strategy

import (
	"slices"

	"github.com/arloliu/splitsource/types"
)

// RoundRobin implements simple round-robin split assignment.
type RoundRobin struct{}

var _ types.AssignmentStrategy = (*RoundRobin)(nil)

// NewRoundRobin creates a new round-robin strategy.
//
// Returns:
//   - *RoundRobin: Initialized round-robin strategy
//
// Example:
//
//	src, err := splitsource.NewSource[string](cfg, splitsource.StringDeserializer{},
//	    splitsource.WithStrategy(strategy.NewRoundRobin()))
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Assign distributes splits evenly across readers.
//
// The algorithm:
//  1. Sort readers and splits (by id) for deterministic assignment
//  2. Hand split i to reader i mod len(readers)
//
// Every reader appears in the result, possibly with no splits.
//
// Parameters:
//   - readers: Reader ids
//   - splits: Splits to assign
//
// Returns:
//   - map[string][]types.Split: Reader id → assigned splits
//   - error: ErrNoReaders when readers is empty
func (rr *RoundRobin) Assign(readers []string, splits []types.Split) (map[string][]types.Split, error) {
	if len(readers) == 0 {
		return nil, ErrNoReaders
	}

	sortedReaders := slices.Clone(readers)
	slices.Sort(sortedReaders)
	sortedSplits := slices.Clone(splits)
	slices.SortFunc(sortedSplits, types.Split.Compare)

	assignments := make(map[string][]types.Split, len(sortedReaders))
	for _, r := range sortedReaders {
		assignments[r] = []types.Split{}
	}

	for i, s := range sortedSplits {
		reader := sortedReaders[i%len(sortedReaders)]
		assignments[reader] = append(assignments[reader], s)
	}

	return assignments, nil
}
