package types

import (
	"errors"
	"strings"
)

// Sentinel errors for the splitsource library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Error Naming Convention:
//   - Use descriptive names with Err prefix
//   - Group by component (Source, SplitReader, Enumerator, Serializer)
//   - Use consistent messages across similar error types

// Source errors - Public API errors returned by the source façade.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNATSConnectionRequired is returned when a NATS connection is nil.
	ErrNATSConnectionRequired = errors.New("NATS connection is required")

	// ErrDeserializerRequired is returned when no payload deserializer is given.
	ErrDeserializerRequired = errors.New("payload deserializer is required")

	// ErrConnectionFactoryRequired is returned when no connection factory is given.
	ErrConnectionFactoryRequired = errors.New("connection factory is required")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("already started")

	// ErrNotStarted is returned when a reader is used before Start.
	ErrNotStarted = errors.New("not started")

	// ErrClosed is returned when an operation is attempted after Close.
	ErrClosed = errors.New("closed")
)

// Connection errors.
var (
	// ErrConnection indicates the factory or broker failed to connect.
	// Recovered locally: the pool recreates the connection on next use.
	ErrConnection = errors.New("connection failed")

	// ErrConnectivity indicates a transient NATS connectivity issue.
	ErrConnectivity = errors.New("connectivity issue")
)

// SplitReader errors.
var (
	// ErrSubscription indicates opening the durable pull consumer failed.
	// Fatal to the reader instance.
	ErrSubscription = errors.New("failed to open durable pull subscription")

	// ErrSplitAlreadyAssigned is returned when a second split is registered to a
	// single-split reader. It is a contract violation and never retried.
	ErrSplitAlreadyAssigned = errors.New("split reader already has an assigned split")

	// ErrUnsupportedSplitChange is returned for split change kinds other than addition.
	ErrUnsupportedSplitChange = errors.New("unsupported split change")

	// ErrFetch indicates an I/O failure during a pull. It terminates the fetch
	// cycle and surfaces to the pipeline; it is not retried internally.
	ErrFetch = errors.New("fetch failed")

	// ErrAcknowledgment indicates publishing an acknowledgment failed.
	// Fatal to the checkpoint completion callback.
	ErrAcknowledgment = errors.New("acknowledgment failed")
)

// Enumerator errors.
var (
	// ErrNoReadersAvailable is returned when assigning splits with no registered readers.
	ErrNoReadersAvailable = errors.New("no readers available")

	// ErrUnknownSplit is returned when an operation names a split the enumerator does not track.
	ErrUnknownSplit = errors.New("unknown split")

	// ErrAlreadyAssigned is returned when Assign is called on an assigned enumerator.
	ErrAlreadyAssigned = errors.New("enumerator already assigned")
)

// Serializer errors.
var (
	// ErrVersionMismatch is returned when serialized data carries an unsupported version.
	ErrVersionMismatch = errors.New("unrecognized serializer version")

	// ErrCorruptData is returned when serialized data cannot be decoded.
	ErrCorruptData = errors.New("corrupt serialized data")
)

// Checkpoint store errors.
var (
	// ErrCheckpointNotFound is returned when no checkpoint snapshot exists.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

// IsContractViolation reports whether err is a programming or configuration
// error that must never be retried.
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true for ErrSplitAlreadyAssigned and ErrUnsupportedSplitChange
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrSplitAlreadyAssigned) || errors.Is(err, ErrUnsupportedSplitChange)
}

// IsFatal reports whether err must be surfaced to the pipeline for task-level
// recovery (restart from checkpoint).
//
// Connection errors are not fatal: the pool recreates the connection on next use.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrSubscription) ||
		errors.Is(err, ErrFetch) ||
		errors.Is(err, ErrAcknowledgment) ||
		IsContractViolation(err)
}

// IsNotFoundError checks if an error indicates a missing KV key or checkpoint.
//
// This handles both our sentinel and NATS "key not found" errors, direct or wrapped.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCheckpointNotFound) {
		return true
	}

	return strings.Contains(err.Error(), "key not found")
}
