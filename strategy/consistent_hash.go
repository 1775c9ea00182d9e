package strategy

import (
	"errors"

	"github.com/arloliu/splitsource/internal/hash"
	"github.com/arloliu/splitsource/types"
)

// DefaultVirtualNodes is the default number of ring positions per reader.
const DefaultVirtualNodes = 150

// ConsistentHash implements consistent hashing with virtual nodes.
type ConsistentHash struct {
	virtualNodes int
	hashSeed     uint64
}

var _ types.AssignmentStrategy = (*ConsistentHash)(nil)

// ConsistentHashOption configures a ConsistentHash strategy.
type ConsistentHashOption func(*ConsistentHash)

// NewConsistentHash creates a new consistent hash strategy.
//
// Parameters:
//   - opts: Optional configuration (WithVirtualNodes, WithHashSeed)
//
// Returns:
//   - *ConsistentHash: Initialized consistent hash strategy
//
// Example:
//
//	s := strategy.NewConsistentHash(strategy.WithVirtualNodes(300))
//	src, err := splitsource.NewSource[Order](cfg, deser, splitsource.WithStrategy(s))
func NewConsistentHash(opts ...ConsistentHashOption) *ConsistentHash {
	ch := &ConsistentHash{
		virtualNodes: DefaultVirtualNodes,
	}

	for _, opt := range opts {
		opt(ch)
	}

	return ch
}

// WithVirtualNodes sets the number of virtual nodes per reader.
//
// Higher values give a more even spread at the cost of a larger ring.
// Non-positive values keep the default.
func WithVirtualNodes(nodes int) ConsistentHashOption {
	return func(ch *ConsistentHash) {
		if nodes > 0 {
			ch.virtualNodes = nodes
		}
	}
}

// WithHashSeed sets the xxh3 seed of the ring.
func WithHashSeed(seed uint64) ConsistentHashOption {
	return func(ch *ConsistentHash) {
		ch.hashSeed = seed
	}
}

// Assign places every split on the ring and hands it to the nearest reader clockwise.
//
// Parameters:
//   - readers: Reader ids
//   - splits: Splits to assign
//
// Returns:
//   - map[string][]types.Split: Reader id → assigned splits (every reader present)
//   - error: ErrNoReaders when readers is empty
func (ch *ConsistentHash) Assign(readers []string, splits []types.Split) (map[string][]types.Split, error) {
	if len(readers) == 0 {
		return nil, ErrNoReaders
	}

	ring := hash.NewRing(readers, ch.virtualNodes, ch.hashSeed)

	assignments := make(map[string][]types.Split, len(readers))
	for _, r := range readers {
		assignments[r] = []types.Split{}
	}

	for _, split := range splits {
		reader := ring.GetNodeForSplit(split)
		if reader == "" {
			return nil, errors.New("consistent hash returned empty reader")
		}
		assignments[reader] = append(assignments[reader], split)
	}

	return assignments, nil
}
