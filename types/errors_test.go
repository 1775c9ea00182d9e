package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelErrors(t *testing.T) {
	t.Run("wrapped errors maintain identity", func(t *testing.T) {
		wrapped := fmt.Errorf("split orders.eu: %w", ErrFetch)
		require.True(t, errors.Is(wrapped, ErrFetch))
		require.False(t, errors.Is(wrapped, ErrAcknowledgment))
	})

	t.Run("all errors are distinct", func(t *testing.T) {
		allErrors := []error{
			ErrInvalidConfig,
			ErrNATSConnectionRequired,
			ErrDeserializerRequired,
			ErrConnectionFactoryRequired,
			ErrAlreadyStarted,
			ErrNotStarted,
			ErrClosed,
			ErrConnection,
			ErrConnectivity,
			ErrSubscription,
			ErrSplitAlreadyAssigned,
			ErrUnsupportedSplitChange,
			ErrFetch,
			ErrAcknowledgment,
			ErrNoReadersAvailable,
			ErrUnknownSplit,
			ErrAlreadyAssigned,
			ErrVersionMismatch,
			ErrCorruptData,
			ErrCheckpointNotFound,
		}

		for i, a := range allErrors {
			for j, b := range allErrors {
				if i == j {
					continue
				}
				require.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	})
}

func TestIsFatal(t *testing.T) {
	require.False(t, IsFatal(nil))
	require.False(t, IsFatal(fmt.Errorf("dial: %w", ErrConnection)))
	require.True(t, IsFatal(fmt.Errorf("pull: %w", ErrFetch)))
	require.True(t, IsFatal(fmt.Errorf("open: %w", ErrSubscription)))
	require.True(t, IsFatal(fmt.Errorf("publish: %w", ErrAcknowledgment)))
	require.True(t, IsFatal(ErrSplitAlreadyAssigned))
}

func TestIsContractViolation(t *testing.T) {
	require.True(t, IsContractViolation(ErrSplitAlreadyAssigned))
	require.True(t, IsContractViolation(fmt.Errorf("kind Removal: %w", ErrUnsupportedSplitChange)))
	require.False(t, IsContractViolation(ErrFetch))
}

func TestIsNotFoundError(t *testing.T) {
	require.False(t, IsNotFoundError(nil))
	require.True(t, IsNotFoundError(ErrCheckpointNotFound))
	require.True(t, IsNotFoundError(errors.New("nats: key not found")))
	require.False(t, IsNotFoundError(errors.New("timeout")))
}
