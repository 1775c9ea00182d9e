package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/splitsource/types"
)

func TestConsistentHash_Assign(t *testing.T) {
	t.Run("single reader takes everything", func(t *testing.T) {
		assignments, err := NewConsistentHash().Assign([]string{"r-0"}, makeSplits(4))

		require.NoError(t, err)
		require.Len(t, assignments, 1)
		require.Len(t, assignments["r-0"], 4)
	})

	t.Run("every split assigned exactly once", func(t *testing.T) {
		splits := makeSplits(60)
		assignments, err := NewConsistentHash().Assign([]string{"r-0", "r-1", "r-2"}, splits)
		require.NoError(t, err)
		require.Len(t, assignments, 3)

		seen := make(map[string]string)
		for reader, assigned := range assignments {
			require.NotEmpty(t, assigned, "reader %s should get some splits", reader)
			for _, s := range assigned {
				prev, dup := seen[s.ID]
				require.False(t, dup, "split %s assigned to %s and %s", s.ID, prev, reader)
				seen[s.ID] = reader
			}
		}
		require.Len(t, seen, len(splits))
	})

	t.Run("deterministic", func(t *testing.T) {
		readers := []string{"r-0", "r-1", "r-2"}
		splits := makeSplits(20)

		a, err := NewConsistentHash(WithHashSeed(7)).Assign(readers, splits)
		require.NoError(t, err)
		b, err := NewConsistentHash(WithHashSeed(7)).Assign(readers, splits)
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("adding a reader only moves splits to it", func(t *testing.T) {
		splits := makeSplits(100)
		s := NewConsistentHash(WithVirtualNodes(200))

		before, err := s.Assign([]string{"r-0", "r-1", "r-2"}, splits)
		require.NoError(t, err)
		after, err := s.Assign([]string{"r-0", "r-1", "r-2", "r-3"}, splits)
		require.NoError(t, err)

		owner := func(m map[string][]types.Split) map[string]string {
			out := make(map[string]string)
			for r, ss := range m {
				for _, sp := range ss {
					out[sp.ID] = r
				}
			}

			return out
		}
		prev, next := owner(before), owner(after)
		for id, r := range next {
			if r != prev[id] {
				require.Equal(t, "r-3", r, "split %s moved between existing readers", id)
			}
		}
	})

	t.Run("no readers", func(t *testing.T) {
		_, err := NewConsistentHash().Assign(nil, makeSplits(1))
		require.ErrorIs(t, err, ErrNoReaders)
	})
}
