package types

// ReaderState represents the lifecycle state of a split reader.
//
// States follow a defined progression:
//
//	ReaderUnassigned → ReaderAssigned → (ReaderFetching ⇄ ReaderIdle) → ReaderClosed
//
// In bounded mode a reader whose split finished moves to ReaderFinished before
// it is closed.
type ReaderState int

const (
	// ReaderUnassigned is the state before any split was registered.
	ReaderUnassigned ReaderState = iota

	// ReaderAssigned indicates a split is registered and its consumer is open.
	ReaderAssigned

	// ReaderFetching indicates a pull request is in flight.
	ReaderFetching

	// ReaderIdle indicates the reader is between fetch cycles.
	ReaderIdle

	// ReaderFinished indicates the bounded split reached its end.
	ReaderFinished

	// ReaderClosed is terminal.
	ReaderClosed
)

// String returns the string representation of the state.
func (s ReaderState) String() string {
	switch s {
	case ReaderUnassigned:
		return "Unassigned"
	case ReaderAssigned:
		return "Assigned"
	case ReaderFetching:
		return "Fetching"
	case ReaderIdle:
		return "Idle"
	case ReaderFinished:
		return "Finished"
	case ReaderClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// EnumeratorState represents the lifecycle state of the split enumerator.
//
//	EnumeratorUninitialized → EnumeratorAssigned
type EnumeratorState int

const (
	// EnumeratorUninitialized indicates splits are known but not yet assigned.
	EnumeratorUninitialized EnumeratorState = iota

	// EnumeratorAssigned indicates the full split set was assigned to readers.
	EnumeratorAssigned
)

// String returns the string representation of the state.
func (s EnumeratorState) String() string {
	switch s {
	case EnumeratorUninitialized:
		return "Uninitialized"
	case EnumeratorAssigned:
		return "Assigned"
	default:
		return "Unknown"
	}
}
