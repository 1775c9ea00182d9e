package splitsource

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/splitsource/connection"
	"github.com/arloliu/splitsource/serializer"
	"github.com/arloliu/splitsource/source"
	sstesting "github.com/arloliu/splitsource/testing"
	"github.com/arloliu/splitsource/types"
)

func TestNewSource_Validation(t *testing.T) {
	_, err := NewSource[string](DefaultConfig(), nil)
	require.ErrorIs(t, err, ErrDeserializerRequired)

	cfg := DefaultConfig()
	cfg.FinishPolicy = "eventually"
	_, err = NewSource[string](cfg, StringDeserializer{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	src, err := NewSource[string](Config{}, StringDeserializer{})
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), src.Config())
	require.Equal(t, ContinuousUnbounded, src.Boundedness())
	require.NotNil(t, src.PayloadDeserializer())

	_, err = src.CreateReader(nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSource_EnumeratorFromSubjects(t *testing.T) {
	cfg := TestConfig()
	cfg.Subjects = []string{"a", "b", "c"}
	src, err := NewSource[string](cfg, StringDeserializer{})
	require.NoError(t, err)

	enum, err := src.CreateEnumerator(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, types.SplitIDs(enum.Splits()))

	restored := src.RestoreEnumerator([]types.Split{types.NewSubjectSplit("a"), types.NewSubjectSplit("b")})
	require.Equal(t, []string{"a", "b"}, types.SplitIDs(restored.Splits()))
}

func TestSource_SerializersRoundTripSnapshot(t *testing.T) {
	cfg := TestConfig()
	cfg.Subjects = []string{"orders.eu", "orders.us", "orders.apac"}
	src, err := NewSource[string](cfg, StringDeserializer{})
	require.NoError(t, err)

	enum, err := src.CreateEnumerator(t.Context())
	require.NoError(t, err)

	data, err := serializer.WriteVersioned[[]types.Split](src.EnumeratorCheckpointSerializer(), enum.SnapshotState())
	require.NoError(t, err)
	snapshot, err := serializer.ReadVersioned[[]types.Split](src.EnumeratorCheckpointSerializer(), data)
	require.NoError(t, err)

	require.Equal(t, cfg.Subjects, types.SplitIDs(src.RestoreEnumerator(snapshot).Splits()))

	splitData, err := src.SplitSerializer().Serialize(types.NewSubjectSplit("orders.eu"))
	require.NoError(t, err)
	split, err := src.SplitSerializer().Deserialize(serializer.CurrentVersion, splitData)
	require.NoError(t, err)
	require.Equal(t, "orders.eu", split.ID)
}

func TestSource_CustomSplitSourceError(t *testing.T) {
	boom := errors.New("listing failed")
	src, err := NewSource[string](TestConfig(), StringDeserializer{}, WithSplitSource(failingSource{err: boom}))
	require.NoError(t, err)

	_, err = src.CreateEnumerator(t.Context())
	require.ErrorIs(t, err, boom)
}

type failingSource struct{ err error }

func (s failingSource) ListSplits(context.Context) ([]types.Split, error) { return nil, s.err }

type sourceEnv struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	cfg Config
}

func newSourceEnv(t *testing.T) *sourceEnv {
	t.Helper()

	ns, nc := sstesting.StartEmbeddedNATS(t)
	sstesting.CreateStream(t, nc, "ORDERS", "orders.>")
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	cfg := TestConfig()
	cfg.URL = ns.ClientURL()
	cfg.StreamName = "ORDERS"
	cfg.Subjects = []string{"orders.eu", "orders.us"}

	return &sourceEnv{nc: nc, js: js, cfg: cfg}
}

func (e *sourceEnv) numAckPending(t *testing.T, consumer string) int {
	t.Helper()

	cons, err := e.js.Consumer(t.Context(), "ORDERS", consumer)
	require.NoError(t, err)
	info, err := cons.Info(t.Context())
	require.NoError(t, err)

	return info.NumAckPending
}

// pollUntil polls r until done returns true or the deadline passes.
func pollUntil(t *testing.T, r *Reader[string], done func([]Record[string]) bool) []Record[string] {
	t.Helper()

	var out []Record[string]
	deadline := time.Now().Add(10 * time.Second)
	for !done(out) {
		require.True(t, time.Now().Before(deadline), "condition not met, got %d records", len(out))

		ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
		records, err := r.Poll(ctx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			continue
		}
		require.NoError(t, err)
		out = append(out, records...)
	}

	return out
}

func TestSource_EndToEndAckAfterCheckpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newSourceEnv(t)
	euPayloads := sstesting.PublishMessages(t, env.nc, "orders.eu", 3)
	usPayloads := sstesting.PublishMessages(t, env.nc, "orders.us", 2)

	src, err := NewSource[string](env.cfg, StringDeserializer{}, WithLogger(sstesting.NewTestLogger(t)))
	require.NoError(t, err)

	enum, err := src.CreateEnumerator(t.Context())
	require.NoError(t, err)
	rctx, err := NewLocalReaderContext(enum, "reader-0")
	require.NoError(t, err)
	reader, err := src.CreateReader(rctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reader.Close(context.Background()) })

	assignments, err := enum.Assign()
	require.NoError(t, err)
	require.Len(t, assignments["reader-0"], 2)

	require.NoError(t, reader.Start(t.Context()))
	require.NoError(t, reader.AddSplits(t.Context(), assignments["reader-0"]))

	state, ok := enum.SplitState("orders.eu")
	require.True(t, ok)
	require.Equal(t, types.SplitRunning, state)

	records := pollUntil(t, reader, func(r []Record[string]) bool { return len(r) >= 5 })
	got := map[string][]string{}
	for _, rec := range records {
		got[rec.SplitID] = append(got[rec.SplitID], rec.Value)
	}
	require.Equal(t, euPayloads, got["orders.eu"])
	require.Equal(t, usPayloads, got["orders.us"])

	require.Equal(t, 3, env.numAckPending(t, "splitsource-orders_eu"))
	require.Equal(t, 2, env.numAckPending(t, "splitsource-orders_us"))

	splits := reader.SnapshotState(1)
	require.Equal(t, []string{"orders.eu", "orders.us"}, types.SplitIDs(splits))
	require.NoError(t, reader.NotifyCheckpointComplete(t.Context(), 1))

	require.Eventually(t, func() bool {
		return env.numAckPending(t, "splitsource-orders_eu") == 0 &&
			env.numAckPending(t, "splitsource-orders_us") == 0
	}, 5*time.Second, 50*time.Millisecond)
	require.Zero(t, reader.PendingAcks())
}

func TestSource_BoundedSplitsFinish(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newSourceEnv(t)
	sstesting.PublishMessages(t, env.nc, "orders.eu", 2)
	sstesting.PublishMessages(t, env.nc, "orders.us", 1)

	cfg := env.cfg
	cfg.Bounded = true
	cfg.MaxFetchRecords = 5

	var finished []string
	hooks := &Hooks{OnSplitFinished: func(_ context.Context, splitID string) error {
		finished = append(finished, splitID)
		return nil
	}}
	src, err := NewSource[string](cfg, StringDeserializer{}, WithHooks(hooks))
	require.NoError(t, err)
	require.Equal(t, Bounded, src.Boundedness())

	enum, err := src.CreateEnumerator(t.Context())
	require.NoError(t, err)
	rctx, err := src.NewReaderContext(enum)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rctx.ReaderID(), "reader-"))
	reader, err := src.CreateReader(rctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reader.Close(context.Background()) })

	assignments, err := enum.Assign()
	require.NoError(t, err)
	require.NoError(t, reader.Start(t.Context()))
	require.NoError(t, reader.AddSplits(t.Context(), assignments[rctx.ReaderID()]))

	records := pollUntil(t, reader, func([]Record[string]) bool { return reader.FinishedSplits() == 2 })
	require.Len(t, records, 3)

	require.True(t, enum.Finished())
	require.Empty(t, enum.SnapshotState())
	slices.Sort(finished)
	require.Equal(t, []string{"orders.eu", "orders.us"}, finished)
	require.Empty(t, reader.SnapshotState(1))

	// Messages of finished splits are still acknowledged.
	require.NoError(t, reader.NotifyCheckpointComplete(t.Context(), 1))
	require.Eventually(t, func() bool {
		return env.numAckPending(t, "splitsource-orders_eu") == 0 &&
			env.numAckPending(t, "splitsource-orders_us") == 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestSource_CheckpointStoreRestore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newSourceEnv(t)
	src, err := NewSource[string](env.cfg, StringDeserializer{},
		WithSplitSource(source.NewStreamSubjects(env.js, "ORDERS", "orders.>")))
	require.NoError(t, err)

	sstesting.PublishMessages(t, env.nc, "orders.eu", 1)
	sstesting.PublishMessages(t, env.nc, "orders.us", 1)
	sstesting.PublishMessages(t, env.nc, "orders.apac", 1)

	enum, err := src.CreateEnumerator(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{"orders.apac", "orders.eu", "orders.us"}, types.SplitIDs(enum.Splits()))

	store, err := src.NewCheckpointStore(t.Context(), env.js)
	require.NoError(t, err)

	_, err = store.Load(t.Context())
	require.ErrorIs(t, err, ErrCheckpointNotFound)

	_, err = store.Save(t.Context(), 1, enum.SnapshotState())
	require.NoError(t, err)

	snap, err := store.Load(t.Context())
	require.NoError(t, err)
	restored := src.RestoreEnumerator(snap.Splits)
	require.Equal(t, types.SplitIDs(enum.Splits()), types.SplitIDs(restored.Splits()))
}

func TestSource_CustomConnectionFactory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newSourceEnv(t)
	sstesting.PublishMessages(t, env.nc, "orders.eu", 1)

	cfg := env.cfg
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Subjects = []string{"orders.eu"}
	factory := connection.NewNATSFactory(env.nc.ConnectedUrl(), nats.Name("splitsource-test"))

	src, err := NewSource[string](cfg, StringDeserializer{}, WithConnectionFactory(factory))
	require.NoError(t, err)

	enum, err := src.CreateEnumerator(t.Context())
	require.NoError(t, err)
	rctx, err := NewLocalReaderContext(enum, "reader-0")
	require.NoError(t, err)
	reader, err := src.CreateReader(rctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reader.Close(context.Background()) })

	assignments, err := enum.Assign()
	require.NoError(t, err)
	require.NoError(t, reader.Start(t.Context()))
	require.NoError(t, reader.AddSplits(t.Context(), assignments["reader-0"]))

	records := pollUntil(t, reader, func(r []Record[string]) bool { return len(r) >= 1 })
	require.Equal(t, "orders.eu-0", records[0].Value)
}
