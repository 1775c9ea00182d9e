package types

// AssignmentStrategy distributes splits across reader instances.
//
// Strategies implement different assignment algorithms:
//   - RoundRobin: Even distribution in split order
//   - ConsistentHash: Hash ring with virtual nodes (stable across reader churn)
//
// The enumerator calls Assign once with the full split set (static full
// assignment), and again for splits handed back by a failed reader.
//
// Strategy implementations should:
//   - Be deterministic (same input → same output)
//   - Assign every split to exactly one reader
//   - Be stateless (no side effects)
type AssignmentStrategy interface {
	// Assign calculates split assignments for the given readers.
	//
	// Parameters:
	//   - readers: List of reader IDs
	//   - splits: List of splits to assign
	//
	// Returns:
	//   - map[string][]Split: Map from reader ID to assigned splits
	//   - error: Assignment error (e.g., ErrNoReadersAvailable)
	Assign(readers []string, splits []Split) (map[string][]Split, error)
}
