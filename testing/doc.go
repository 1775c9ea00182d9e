// Package testing provides test utilities for the splitsource library.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS servers for integration testing. It follows Go's convention
// of providing testing utilities in a dedicated package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateStream: Memory-backed stream over a set of subjects
//   - PublishMessages: Publish numbered payloads and wait for stream acks
//   - NewTestLogger: types.Logger writing to t.Logf
//
// Example usage:
//
//	import (
//	    "testing"
//	    sstesting "github.com/arloliu/splitsource/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := sstesting.StartEmbeddedNATS(t)
//	    sstesting.CreateStream(t, nc, "ORDERS", "orders.>")
//	}
package testing
