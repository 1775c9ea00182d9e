package types

import "context"

// SplitSource discovers the subject splits a source consumes.
//
// Implementations can query various backends:
//   - Static: fixed list of subjects from configuration
//   - Custom: e.g., subjects listed from a stream's configuration
//
// The source calls ListSplits once when creating a fresh enumerator. Restored
// enumerators use the checkpoint snapshot instead.
type SplitSource interface {
	// ListSplits returns all splits to be consumed.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//
	// Returns:
	//   - []Split: Discovered splits (ordered)
	//   - error: Discovery error (nil on success)
	ListSplits(ctx context.Context) ([]Split, error)
}
