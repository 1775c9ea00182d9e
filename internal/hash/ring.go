// Package hash implements the consistent hash ring used to place splits on readers.
package hash

import (
	"encoding/binary"
	"slices"

	"github.com/zeebo/xxh3"

	"github.com/arloliu/splitsource/types"
)

// Ring implements a consistent hash ring with virtual nodes.
//
// The ring maps split IDs to readers using consistent hashing, which keeps
// most splits on the same reader when readers are added or removed.
type Ring struct {
	// nodes contains all virtual nodes on the ring, sorted by hash
	nodes []virtualNode

	// readers holds the unique list of readers present on the ring
	readers []string

	// seed for hash function (0 means no seed)
	seed uint64
}

type virtualNode struct {
	hash     uint64
	readerID string
}

// NewRing creates a new consistent hash ring.
//
// Parameters:
//   - readers: List of reader IDs to place on the ring (duplicates are ignored)
//   - virtualNodesPerReader: Number of virtual nodes per reader (higher = better distribution)
//   - seed: Seed for hash function (0 for the unseeded variant)
//
// Example:
//
//	ring := hash.NewRing([]string{"reader-0", "reader-1"}, 150, 0)
//	readerID := ring.GetNodeForSplit(split)
func NewRing(readers []string, virtualNodesPerReader int, seed uint64) *Ring {
	ring := &Ring{
		nodes:   make([]virtualNode, 0, len(readers)*virtualNodesPerReader),
		readers: make([]string, 0, len(readers)),
		seed:    seed,
	}

	seen := make(map[string]struct{}, len(readers))
	for _, r := range readers {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		ring.readers = append(ring.readers, r)
		ring.addReader(r, virtualNodesPerReader)
	}

	slices.SortFunc(ring.nodes, func(a, b virtualNode) int {
		switch {
		case a.hash < b.hash:
			return -1
		case a.hash > b.hash:
			return 1
		default:
			return 0
		}
	})

	return ring
}

// GetNode finds the reader responsible for a key.
//
// Uses binary search to find the first virtual node whose hash is >= the key hash,
// wrapping around to the first node past the end of the ring.
//
// Returns:
//   - string: Reader ID ("" if the ring is empty)
func (r *Ring) GetNode(key string) string {
	if len(r.nodes) == 0 {
		return ""
	}

	target := r.hash(key)
	idx, _ := slices.BinarySearchFunc(r.nodes, target, func(node virtualNode, t uint64) int {
		switch {
		case node.hash < t:
			return -1
		case node.hash > t:
			return 1
		default:
			return 0
		}
	})
	if idx >= len(r.nodes) {
		idx = 0
	}

	return r.nodes[idx].readerID
}

// GetNodeForSplit finds the reader for a split by hashing its ID.
func (r *Ring) GetNodeForSplit(split types.Split) string {
	return r.GetNode(split.ID)
}

// Readers returns a copy of the unique readers on the ring.
func (r *Ring) Readers() []string {
	return append([]string(nil), r.readers...)
}

// Size returns the total number of virtual nodes on the ring.
func (r *Ring) Size() int {
	return len(r.nodes)
}

// addReader adds virtual nodes for a reader, folding the vnode index into the
// reader hash so no intermediate strings are built.
func (r *Ring) addReader(readerID string, virtualNodes int) {
	base := r.hash(readerID)
	var ib [8]byte
	for i := range virtualNodes {
		binary.LittleEndian.PutUint64(ib[:], uint64(i)) //nolint:gosec
		r.nodes = append(r.nodes, virtualNode{
			hash:     xxh3.HashSeed(ib[:], base),
			readerID: readerID,
		})
	}
}

func (r *Ring) hash(key string) uint64 {
	if r.seed != 0 {
		return xxh3.HashStringSeed(key, r.seed)
	}

	return xxh3.HashString(key)
}
