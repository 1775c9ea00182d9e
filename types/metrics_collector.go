package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from fetcher goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	FetcherMetrics
	ReaderMetrics
	EnumeratorMetrics
	ConnectionMetrics
}

// FetcherMetrics defines metrics for the fetcher manager.
type FetcherMetrics interface {
	// RecordFetcherStarted records a fetcher goroutine start.
	RecordFetcherStarted()

	// RecordFetcherClosed records a fetcher shutdown.
	//
	// Parameters:
	//   - reason: Why the fetcher stopped ("closed", "idle", "error")
	RecordFetcherClosed(reason string)

	// RecordActiveFetchers sets the current number of live fetchers (gauge metric).
	RecordActiveFetchers(count int)
}

// ReaderMetrics defines metrics for split reader operations.
type ReaderMetrics interface {
	// RecordFetch records one fetch cycle.
	//
	// Parameters:
	//   - splitID: Split that was fetched
	//   - count: Number of messages returned
	//   - duration: Time taken in seconds
	//   - err: true if the fetch failed
	RecordFetch(splitID string, count int, duration float64, err bool)

	// RecordAcknowledged records acknowledged messages for a split.
	//
	// Parameters:
	//   - splitID: Split the messages belong to
	//   - count: Number of acknowledgments published
	//   - success: false if acknowledgment failed
	RecordAcknowledged(splitID string, count int, success bool)

	// RecordPendingAcks sets the number of messages awaiting checkpoint confirmation (gauge metric).
	RecordPendingAcks(count int)
}

// EnumeratorMetrics defines metrics for split enumeration.
type EnumeratorMetrics interface {
	// RecordSplitCount sets the number of splits tracked by the enumerator (gauge metric).
	RecordSplitCount(count int)

	// RecordSplitFinished records a bounded split reaching its end.
	RecordSplitFinished(splitID string)
}

// ConnectionMetrics defines metrics for the connection pool.
type ConnectionMetrics interface {
	// RecordConnectionCreated records a pooled connection creation.
	//
	// Parameters:
	//   - reconnect: true when replacing a closed or disconnected connection
	RecordConnectionCreated(reconnect bool)

	// RecordConnectionReleased records a pooled connection release.
	RecordConnectionReleased()
}
