package splitsource

import "github.com/arloliu/splitsource/types"

// Re-export types from the internal types package.
//
// This file provides a stable public API for the library's core types and
// interfaces. It uses type aliases to re-export definitions from the `types`
// subpackage, which every internal package depends on without importing the
// root package.
type (
	Split           = types.Split
	SplitsChange    = types.SplitsChange
	Message         = types.Message
	RecordsBySplits = types.RecordsBySplits
	Boundedness     = types.Boundedness
	FinishPolicy    = types.FinishPolicy
	ReaderState     = types.ReaderState
	SplitState      = types.SplitState
)

// Re-export interfaces from the internal types package for convenience.
type (
	AssignmentStrategy = types.AssignmentStrategy
	SplitSource        = types.SplitSource
	MetricsCollector   = types.MetricsCollector
	Logger             = types.Logger
	Hooks              = types.Hooks
)

// Re-export Boundedness constants.
const (
	ContinuousUnbounded = types.ContinuousUnbounded
	Bounded             = types.Bounded
)
