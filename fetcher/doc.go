// Package fetcher runs one fetch goroutine per split and routes deferred
// acknowledgments to the fetcher that owns a split.
//
// The Manager keeps a guarded split → fetcher table with atomic get-or-create,
// starts each fetcher at most once, and hands fetched batches to the pipeline
// through a bounded queue. Fetchers left without splits retire themselves.
package fetcher
