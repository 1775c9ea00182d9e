// Package types provides core type definitions and interfaces for the splitsource library.
//
// This package contains shared types that are used across multiple packages in the
// library. By keeping these types in a separate package, we avoid import cycles
// between the root splitsource package and its internal implementations.
//
// Key types:
//   - Split: A unit of partitioned work (one subject address)
//   - SplitsChange: Closed variant describing split additions and removals
//   - Message: Minimal message handle retained until acknowledgment
//   - RecordsBySplits: A fetched batch grouped by split
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
