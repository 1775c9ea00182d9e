package splitsource

import "github.com/arloliu/splitsource/types"

// Sentinel errors re-exported from the types package.
var (
	ErrInvalidConfig             = types.ErrInvalidConfig
	ErrNATSConnectionRequired    = types.ErrNATSConnectionRequired
	ErrDeserializerRequired      = types.ErrDeserializerRequired
	ErrConnectionFactoryRequired = types.ErrConnectionFactoryRequired
	ErrAlreadyStarted            = types.ErrAlreadyStarted
	ErrNotStarted                = types.ErrNotStarted
	ErrClosed                    = types.ErrClosed

	ErrConnection             = types.ErrConnection
	ErrSubscription           = types.ErrSubscription
	ErrSplitAlreadyAssigned   = types.ErrSplitAlreadyAssigned
	ErrUnsupportedSplitChange = types.ErrUnsupportedSplitChange
	ErrFetch                  = types.ErrFetch
	ErrAcknowledgment         = types.ErrAcknowledgment

	ErrNoReadersAvailable = types.ErrNoReadersAvailable
	ErrUnknownSplit       = types.ErrUnknownSplit
	ErrAlreadyAssigned    = types.ErrAlreadyAssigned

	ErrVersionMismatch    = types.ErrVersionMismatch
	ErrCorruptData        = types.ErrCorruptData
	ErrCheckpointNotFound = types.ErrCheckpointNotFound
)
