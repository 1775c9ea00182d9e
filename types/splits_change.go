package types

// SplitsChangeKind discriminates the SplitsChange variant.
type SplitsChangeKind int

const (
	// SplitsAddition adds splits to a reader.
	SplitsAddition SplitsChangeKind = iota + 1

	// SplitsRemoval removes splits from a reader.
	SplitsRemoval
)

// String returns the string representation of the change kind.
func (k SplitsChangeKind) String() string {
	switch k {
	case SplitsAddition:
		return "Addition"
	case SplitsRemoval:
		return "Removal"
	default:
		return "Unknown"
	}
}

// SplitsChange describes a change to the set of splits handled by a split reader.
//
// It is a closed variant: construct it with NewSplitsAddition or NewSplitsRemoval
// and switch on Kind. Readers reject kinds they do not support with
// ErrUnsupportedSplitChange.
type SplitsChange struct {
	Kind   SplitsChangeKind
	Splits []Split
}

// NewSplitsAddition creates an addition change.
func NewSplitsAddition(splits ...Split) SplitsChange {
	return SplitsChange{Kind: SplitsAddition, Splits: splits}
}

// NewSplitsRemoval creates a removal change.
func NewSplitsRemoval(splits ...Split) SplitsChange {
	return SplitsChange{Kind: SplitsRemoval, Splits: splits}
}
