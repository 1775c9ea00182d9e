package types

// Boundedness tells whether a source ends on its own.
type Boundedness int

const (
	// ContinuousUnbounded sources never finish; splits run until the job stops.
	ContinuousUnbounded Boundedness = iota

	// Bounded sources finish each split once its finish policy is met.
	Bounded
)

// String returns the string representation of the boundedness.
func (b Boundedness) String() string {
	switch b {
	case ContinuousUnbounded:
		return "continuous_unbounded"
	case Bounded:
		return "bounded"
	default:
		return "unknown"
	}
}

// FinishPolicy decides when a bounded split is finished after a fetch.
type FinishPolicy int

const (
	// FinishAtOrBelowMax finishes the split when a fetch returns count <= max.
	// Every fetch satisfies this, so a bounded split ends after its first fetch
	// even when more data remains upstream.
	FinishAtOrBelowMax FinishPolicy = iota

	// FinishBelowMax finishes the split only when a fetch returns fewer than max
	// messages, i.e. the consumer had nothing more to deliver.
	FinishBelowMax
)

// String returns the string representation of the finish policy.
func (p FinishPolicy) String() string {
	switch p {
	case FinishAtOrBelowMax:
		return "at_or_below_max"
	case FinishBelowMax:
		return "below_max"
	default:
		return "unknown"
	}
}

// Finished reports whether a fetch that returned count messages out of max
// finishes the split.
func (p FinishPolicy) Finished(count, maxRecords int) bool {
	if p == FinishBelowMax {
		return count < maxRecords
	}

	return count <= maxRecords
}
