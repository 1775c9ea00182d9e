package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sstesting "github.com/arloliu/splitsource/testing"
	"github.com/arloliu/splitsource/types"
)

// countingFactory wraps a NATSFactory and counts connects.
type countingFactory struct {
	inner *NATSFactory
	calls atomic.Int32
	err   error
}

func (f *countingFactory) Connect(ctx context.Context) (*nats.Conn, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}

	return f.inner.Connect(ctx)
}

func (f *countingFactory) ConnectContext(ctx context.Context) (*Context, error) {
	nc, err := f.Connect(ctx)
	if err != nil {
		return nil, err
	}

	return NewContext(nc)
}

func newCountingFactory(t *testing.T) *countingFactory {
	t.Helper()
	ns, _ := sstesting.StartEmbeddedNATS(t)

	return &countingFactory{inner: NewNATSFactory(ns.ClientURL())}
}

func TestPool_GetReusesLiveConnection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	factory := newCountingFactory(t)
	pool := NewPool(factory, WithLogger(sstesting.NewTestLogger(t)))
	t.Cleanup(pool.Close)

	first, err := pool.Get(t.Context(), "orders.eu")
	require.NoError(t, err)
	require.NotNil(t, first.JS)

	second, err := pool.Get(t.Context(), "orders.eu")
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, int32(1), factory.calls.Load())
	require.Equal(t, 1, pool.Len())
}

func TestPool_GetReplacesClosedConnection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	factory := newCountingFactory(t)
	pool := NewPool(factory)
	t.Cleanup(pool.Close)

	first, err := pool.Get(t.Context(), "orders.eu")
	require.NoError(t, err)
	first.Conn.Close()

	second, err := pool.Get(t.Context(), "orders.eu")
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.True(t, second.Conn.IsConnected())
	require.Equal(t, int32(2), factory.calls.Load())
}

func TestPool_SeparateEntriesPerSplit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	factory := newCountingFactory(t)
	pool := NewPool(factory)
	t.Cleanup(pool.Close)

	splits := []string{"a", "b", "c", "d"}
	var wg sync.WaitGroup
	for _, id := range splits {
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := pool.Get(context.Background(), id)
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	require.Equal(t, len(splits), pool.Len())
	require.Equal(t, int32(len(splits)), factory.calls.Load())
}

func TestPool_ReleaseExactlyOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	factory := newCountingFactory(t)
	pool := NewPool(factory)
	t.Cleanup(pool.Close)

	cc, err := pool.Get(t.Context(), "orders.eu")
	require.NoError(t, err)

	var released atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if pool.Release("orders.eu") {
				released.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), released.Load())
	require.True(t, cc.Conn.IsClosed())
	require.Equal(t, 0, pool.Len())
	require.False(t, pool.Release("unknown"))
}

func TestPool_ClosedPoolRejectsGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	factory := newCountingFactory(t)
	pool := NewPool(factory)

	cc, err := pool.Get(t.Context(), "orders.eu")
	require.NoError(t, err)

	pool.Close()
	pool.Close()

	require.True(t, cc.Conn.IsClosed())
	_, err = pool.Get(t.Context(), "orders.eu")
	require.ErrorIs(t, err, types.ErrClosed)
}

func TestPool_FactoryErrorIsConnectionError(t *testing.T) {
	factory := &countingFactory{err: errors.New("dial refused")}
	pool := NewPool(factory)
	t.Cleanup(pool.Close)

	_, err := pool.Get(t.Context(), "orders.eu")
	require.ErrorIs(t, err, types.ErrConnection)
	require.False(t, types.IsFatal(err))

	// The failed entry stays empty and is retried on next use.
	_, err = pool.Get(t.Context(), "orders.eu")
	require.Error(t, err)
	require.Equal(t, int32(2), factory.calls.Load())
}

func TestPool_NilFactory(t *testing.T) {
	pool := NewPool(nil)
	_, err := pool.Get(t.Context(), "a")
	require.ErrorIs(t, err, types.ErrConnectionFactoryRequired)
}

func TestNATSFactory_ConnectContext(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ns, _ := sstesting.StartEmbeddedNATS(t)
	factory := NewNATSFactory(ns.ClientURL(), nats.Name("factory-test"))

	cc, err := factory.ConnectContext(t.Context())
	require.NoError(t, err)
	t.Cleanup(cc.close)
	require.True(t, cc.Conn.IsConnected())
	require.False(t, cc.stale())

	_, err = NewNATSFactory("").Connect(t.Context())
	require.Error(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = factory.Connect(ctx)
	require.ErrorIs(t, err, context.Canceled)

	_, err = NewContext(nil)
	require.ErrorIs(t, err, types.ErrNATSConnectionRequired)
}

func TestPool_InvalidateDropsOnlyCurrentContext(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	factory := newCountingFactory(t)
	pool := NewPool(factory)
	t.Cleanup(pool.Close)

	require.False(t, pool.Invalidate("orders.eu", nil))

	first, err := pool.Get(t.Context(), "orders.eu")
	require.NoError(t, err)
	require.True(t, pool.Invalidate("orders.eu", first))
	require.True(t, first.Conn.IsClosed())

	second, err := pool.Get(t.Context(), "orders.eu")
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.Equal(t, int32(2), factory.calls.Load())

	// A context that was already replaced is ignored.
	require.False(t, pool.Invalidate("orders.eu", first))
	require.False(t, second.Conn.IsClosed())
}
