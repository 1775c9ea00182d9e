package kvutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	sstesting "github.com/arloliu/splitsource/testing"
)

func TestEnsureBucket_ConcurrentCreate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, nc := sstesting.StartEmbeddedNATS(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	const workers = 5
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kv, err := EnsureBucket(ctx, js, jetstream.KeyValueConfig{
				Bucket:  "checkpoints",
				Storage: jetstream.MemoryStorage,
			}, 3)
			if err == nil && kv == nil {
				err = context.Canceled
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestEnsureBucket_CancelledContext(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, nc := sstesting.StartEmbeddedNATS(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = EnsureBucket(ctx, js, jetstream.KeyValueConfig{Bucket: "never"}, 2)
	require.Error(t, err)
}

func TestEnsureBucket_OpensExistingWithoutReconfiguring(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, nc := sstesting.StartEmbeddedNATS(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	_, err = EnsureBucket(t.Context(), js, jetstream.KeyValueConfig{
		Bucket:  "checkpoints",
		History: 4,
		Storage: jetstream.MemoryStorage,
	}, 0)
	require.NoError(t, err)

	kv, err := EnsureBucket(t.Context(), js, jetstream.KeyValueConfig{
		Bucket:  "checkpoints",
		History: 1,
		Storage: jetstream.MemoryStorage,
	}, 0)
	require.NoError(t, err)

	status, err := kv.Status(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(4), status.History())
}

func TestIsMissing(t *testing.T) {
	require.True(t, IsMissing(jetstream.ErrKeyNotFound))
	require.True(t, IsMissing(fmt.Errorf("load: %w", jetstream.ErrKeyDeleted)))
	require.True(t, IsMissing(jetstream.ErrNoKeysFound))
	require.False(t, IsMissing(jetstream.ErrBucketNotFound))
	require.False(t, IsMissing(nil))
}
