package types

import (
	"slices"
	"strings"
)

// Split represents one logical partition of the source: a single subject address.
//
// Identity is the ID. Two splits with the same ID are the same split regardless
// of their cursor state.
type Split struct {
	// ID uniquely identifies the split. For subject splits the ID equals the subject.
	ID string `json:"id"`

	// Subject is the subject address the durable consumer filters on.
	Subject string `json:"subject"`

	// Cursor is opaque per-split consumer state carried through checkpoints.
	// The durable consumer tracks position server-side, so this is usually empty.
	Cursor []byte `json:"cursor,omitempty"`
}

// NewSubjectSplit creates a split whose identity is the given subject.
//
// Parameters:
//   - subject: Subject address (e.g., "orders.eu")
//
// Returns:
//   - Split: Split with ID and Subject set to subject
func NewSubjectSplit(subject string) Split {
	return Split{ID: subject, Subject: subject}
}

// Equal reports whether both splits have the same identity.
func (s Split) Equal(o Split) bool {
	return s.ID == o.ID
}

// Compare orders splits by ID.
func (s Split) Compare(o Split) int {
	return strings.Compare(s.ID, o.ID)
}

// String returns the split ID.
func (s Split) String() string {
	return s.ID
}

// SplitIDs returns the IDs of the given splits in order.
func SplitIDs(splits []Split) []string {
	ids := make([]string, len(splits))
	for i, s := range splits {
		ids[i] = s.ID
	}

	return ids
}

// DedupSplits removes splits with duplicate IDs, keeping the first occurrence
// and preserving the input order.
func DedupSplits(splits []Split) []Split {
	seen := make(map[string]struct{}, len(splits))
	out := make([]Split, 0, len(splits))
	for _, s := range splits {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}

	return slices.Clip(out)
}

// SplitState is the lifecycle state of a split as tracked by the enumerator.
//
//	SplitUnassigned → SplitAssigned → SplitRunning → SplitFinished
type SplitState int

const (
	// SplitUnassigned indicates the split is known but not owned by any reader.
	SplitUnassigned SplitState = iota

	// SplitAssigned indicates the split was handed to a reader.
	SplitAssigned

	// SplitRunning indicates the owning reader reported its fetcher as active.
	SplitRunning

	// SplitFinished indicates the split reached its end (bounded mode only).
	SplitFinished
)

// String returns the string representation of the split state.
func (s SplitState) String() string {
	switch s {
	case SplitUnassigned:
		return "Unassigned"
	case SplitAssigned:
		return "Assigned"
	case SplitRunning:
		return "Running"
	case SplitFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}
