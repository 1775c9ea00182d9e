package natsutil

import "github.com/nats-io/nats.go"

// StatusReporter is the part of *nats.Conn used to judge connection health.
type StatusReporter interface {
	Status() nats.Status
}

// IsStale reports whether a connection must be replaced before use: it is
// nil, closed, or disconnected.
//
// Reconnecting connections are not stale; the client library buffers and
// flushes once the reconnect completes.
func IsStale(conn StatusReporter) bool {
	if conn == nil {
		return true
	}

	switch conn.Status() {
	case nats.CLOSED, nats.DISCONNECTED:
		return true
	default:
		return false
	}
}
