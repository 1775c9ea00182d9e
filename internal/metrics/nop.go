// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/splitsource/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// OrNop returns mc, or a NopMetrics when mc is nil.
func OrNop(mc types.MetricsCollector) types.MetricsCollector {
	if mc == nil {
		return NewNop()
	}

	return mc
}

// FetcherMetrics implementation

// RecordFetcherStarted discards the fetcher start event.
func (n *NopMetrics) RecordFetcherStarted() {}

// RecordFetcherClosed discards the fetcher close event.
func (n *NopMetrics) RecordFetcherClosed(_ /* reason */ string) {}

// RecordActiveFetchers discards the active fetcher gauge.
func (n *NopMetrics) RecordActiveFetchers(_ /* count */ int) {}

// ReaderMetrics implementation

// RecordFetch discards the fetch cycle metric.
func (n *NopMetrics) RecordFetch(_ /* splitID */ string, _ /* count */ int, _ /* duration */ float64, _ /* err */ bool) {
}

// RecordAcknowledged discards the acknowledgment metric.
func (n *NopMetrics) RecordAcknowledged(_ /* splitID */ string, _ /* count */ int, _ /* success */ bool) {}

// RecordPendingAcks discards the pending acknowledgment gauge.
func (n *NopMetrics) RecordPendingAcks(_ /* count */ int) {}

// EnumeratorMetrics implementation

// RecordSplitCount discards the split count gauge.
func (n *NopMetrics) RecordSplitCount(_ /* count */ int) {}

// RecordSplitFinished discards the split finished event.
func (n *NopMetrics) RecordSplitFinished(_ /* splitID */ string) {}

// ConnectionMetrics implementation

// RecordConnectionCreated discards the connection creation event.
func (n *NopMetrics) RecordConnectionCreated(_ /* reconnect */ bool) {}

// RecordConnectionReleased discards the connection release event.
func (n *NopMetrics) RecordConnectionReleased() {}
