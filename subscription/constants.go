package subscription

import "time"

// Default configuration values for SplitReader.
const (
	// DefaultConsumerPrefix prefixes every durable consumer name.
	DefaultConsumerPrefix = "splitsource"

	// DefaultMaxFetchRecords is the default number of messages pulled per fetch.
	DefaultMaxFetchRecords = 100

	// DefaultFetchTimeout is the default maximum duration a fetch waits for messages.
	DefaultFetchTimeout = 5 * time.Second

	// DefaultAckFlushTimeout bounds the flush after publishing a batch of acks.
	DefaultAckFlushTimeout = 5 * time.Second

	// DefaultMaxWaiting is the default maximum number of outstanding pull requests.
	DefaultMaxWaiting = 512

	// DefaultMaxRetries is the default number of consumer creation retries.
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the base delay between consumer creation retries.
	DefaultRetryBackoff = 100 * time.Millisecond

	// DefaultMaxRetryBackoff caps the delay between consumer creation retries.
	DefaultMaxRetryBackoff = 2 * time.Second

	// DefaultAckWait is the default redelivery deadline for unacknowledged messages.
	// Acks wait for checkpoint completion, so this must exceed the checkpoint interval.
	DefaultAckWait = 2 * time.Minute

	// DefaultMaxDeliver is the default delivery cap (-1 means unlimited).
	DefaultMaxDeliver = -1

	// DefaultInactiveThreshold is the default inactive consumer cleanup threshold.
	DefaultInactiveThreshold = 24 * time.Hour
)

// ackBody is the JetStream positive acknowledgment payload.
var ackBody = []byte("+ACK")
