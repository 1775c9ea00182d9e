package subscription

import (
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/splitsource/connection"
	sstesting "github.com/arloliu/splitsource/testing"
	"github.com/arloliu/splitsource/types"
)

// fakeMessage is a message handle without a broker behind it.
type fakeMessage struct {
	subject string
	reply   string
	data    []byte
}

func (m fakeMessage) Subject() string { return m.subject }
func (m fakeMessage) Reply() string   { return m.reply }
func (m fakeMessage) Data() []byte    { return m.data }

type readerEnv struct {
	nc   *nats.Conn
	pool *connection.Pool
}

func newReaderEnv(t *testing.T) *readerEnv {
	t.Helper()

	ns, nc := sstesting.StartEmbeddedNATS(t)
	sstesting.CreateStream(t, nc, "ORDERS", "orders.>")

	pool := connection.NewPool(connection.NewNATSFactory(ns.ClientURL()))
	t.Cleanup(pool.Close)

	return &readerEnv{nc: nc, pool: pool}
}

func (e *readerEnv) newReader(t *testing.T, cfg ReaderConfig) *SplitReader {
	t.Helper()

	if cfg.Logger == nil {
		cfg.Logger = sstesting.NewTestLogger(t)
	}
	r, err := NewSplitReader(e.pool, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return r
}

func TestSplitReader_FetchWithoutSplitIsEmpty(t *testing.T) {
	r, err := NewSplitReader(connection.NewPool(nil), ReaderConfig{})
	require.NoError(t, err)

	records, err := r.Fetch(t.Context())
	require.NoError(t, err)
	require.True(t, records.IsEmpty())
	require.Equal(t, types.ReaderUnassigned, r.State())
}

func TestSplitReader_RejectsNonAddition(t *testing.T) {
	r, err := NewSplitReader(connection.NewPool(nil), ReaderConfig{})
	require.NoError(t, err)

	err = r.HandleSplitsChanges(t.Context(), types.NewSplitsRemoval(types.NewSubjectSplit("orders.eu")))
	require.ErrorIs(t, err, types.ErrUnsupportedSplitChange)
	require.True(t, types.IsContractViolation(err))

	require.NoError(t, r.HandleSplitsChanges(t.Context(), types.NewSplitsAddition()))
	require.Equal(t, types.ReaderUnassigned, r.State())
}

func TestNewSplitReader_RequiresPool(t *testing.T) {
	_, err := NewSplitReader(nil, ReaderConfig{})
	require.ErrorIs(t, err, types.ErrConnectionFactoryRequired)
}

func TestSplitReader_IDIsPrefixed(t *testing.T) {
	r, err := NewSplitReader(connection.NewPool(nil), ReaderConfig{IDPrefix: "orders"})
	require.NoError(t, err)
	require.Regexp(t, `^orders-[0-9a-f-]{36}$`, r.ID())
}

func TestSplitReader_SecondRegistrationFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newReaderEnv(t)
	r := env.newReader(t, ReaderConfig{})

	require.NoError(t, r.HandleSplitsChanges(t.Context(), types.NewSplitsAddition(types.NewSubjectSplit("orders.eu"))))
	require.Equal(t, types.ReaderAssigned, r.State())

	err := r.HandleSplitsChanges(t.Context(), types.NewSplitsAddition(types.NewSubjectSplit("orders.us")))
	require.ErrorIs(t, err, types.ErrSplitAlreadyAssigned)

	split, ok := r.Split()
	require.True(t, ok)
	require.Equal(t, "orders.eu", split.ID)
}

func TestSplitReader_MultiSplitAdditionFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newReaderEnv(t)
	r := env.newReader(t, ReaderConfig{})

	err := r.HandleSplitsChanges(t.Context(), types.NewSplitsAddition(
		types.NewSubjectSplit("orders.eu"), types.NewSubjectSplit("orders.us")))
	require.ErrorIs(t, err, types.ErrSplitAlreadyAssigned)
	require.Equal(t, types.ReaderUnassigned, r.State())
}

func TestSplitReader_UnknownStreamIsSubscriptionError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newReaderEnv(t)
	r := env.newReader(t, ReaderConfig{StreamName: "MISSING"})

	err := r.HandleSplitsChanges(t.Context(), types.NewSplitsAddition(types.NewSubjectSplit("orders.eu")))
	require.ErrorIs(t, err, types.ErrSubscription)
	require.True(t, types.IsFatal(err))
}

func TestSplitReader_FetchTagsRecordsWithSplit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newReaderEnv(t)
	payloads := sstesting.PublishMessages(t, env.nc, "orders.eu", 3)
	sstesting.PublishMessages(t, env.nc, "orders.us", 2)

	r := env.newReader(t, ReaderConfig{MaxFetchRecords: 10, FetchTimeout: 500 * time.Millisecond})
	require.NoError(t, r.HandleSplitsChanges(t.Context(), types.NewSplitsAddition(types.NewSubjectSplit("orders.eu"))))

	records, err := r.Fetch(t.Context())
	require.NoError(t, err)
	require.Equal(t, 3, records.Len())
	require.Empty(t, records.Finished)

	got := make([]string, 0, 3)
	for _, msg := range records.Records["orders.eu"] {
		require.Equal(t, "orders.eu", msg.Subject())
		require.NotEmpty(t, msg.Reply())
		got = append(got, string(msg.Data()))
	}
	require.Equal(t, payloads, got)
	require.Equal(t, types.ReaderIdle, r.State())
}

func TestSplitReader_FetchExpiryIsEmpty(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newReaderEnv(t)
	r := env.newReader(t, ReaderConfig{FetchTimeout: 200 * time.Millisecond})
	require.NoError(t, r.HandleSplitsChanges(t.Context(), types.NewSplitsAddition(types.NewSubjectSplit("orders.eu"))))

	records, err := r.Fetch(t.Context())
	require.NoError(t, err)
	require.Equal(t, 0, records.Len())
}

func TestSplitReader_BoundedFinishesAtMax(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newReaderEnv(t)
	sstesting.PublishMessages(t, env.nc, "orders.eu", 8)

	r := env.newReader(t, ReaderConfig{
		MaxFetchRecords: 5,
		FetchTimeout:    500 * time.Millisecond,
		Boundedness:     types.Bounded,
	})
	require.NoError(t, r.HandleSplitsChanges(t.Context(), types.NewSplitsAddition(types.NewSubjectSplit("orders.eu"))))

	records, err := r.Fetch(t.Context())
	require.NoError(t, err)
	require.Equal(t, 5, records.Len())
	require.Equal(t, []string{"orders.eu"}, records.Finished)
	require.Equal(t, types.ReaderFinished, r.State())

	// A finished split yields nothing more, even though messages remain upstream.
	records, err = r.Fetch(t.Context())
	require.NoError(t, err)
	require.True(t, records.IsEmpty())
}

func TestSplitReader_BoundedStrictPolicyContinuesAtMax(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newReaderEnv(t)
	sstesting.PublishMessages(t, env.nc, "orders.eu", 8)

	r := env.newReader(t, ReaderConfig{
		MaxFetchRecords: 5,
		FetchTimeout:    500 * time.Millisecond,
		Boundedness:     types.Bounded,
		FinishPolicy:    types.FinishBelowMax,
	})
	require.NoError(t, r.HandleSplitsChanges(t.Context(), types.NewSplitsAddition(types.NewSubjectSplit("orders.eu"))))

	records, err := r.Fetch(t.Context())
	require.NoError(t, err)
	require.Equal(t, 5, records.Len())
	require.Empty(t, records.Finished)

	records, err = r.Fetch(t.Context())
	require.NoError(t, err)
	require.Equal(t, 3, records.Len())
	require.Equal(t, []string{"orders.eu"}, records.Finished)
}

func TestSplitReader_NotifyCheckpointCompleteAcksEachReply(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newReaderEnv(t)
	sstesting.PublishMessages(t, env.nc, "orders.eu", 2)

	var mu sync.Mutex
	var acked []string
	sub, err := env.nc.Subscribe("$JS.ACK.>", func(m *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if string(m.Data) == "+ACK" {
			acked = append(acked, m.Subject)
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	require.NoError(t, env.nc.Flush())

	r := env.newReader(t, ReaderConfig{MaxFetchRecords: 10, FetchTimeout: 500 * time.Millisecond})
	require.NoError(t, r.HandleSplitsChanges(t.Context(), types.NewSplitsAddition(types.NewSubjectSplit("orders.eu"))))

	records, err := r.Fetch(t.Context())
	require.NoError(t, err)
	msgs := records.Records["orders.eu"]
	require.Len(t, msgs, 2)

	// Nothing is acknowledged by fetching alone.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	require.Empty(t, acked)
	mu.Unlock()

	require.NoError(t, r.NotifyCheckpointComplete(t.Context(), "orders.eu", msgs))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(acked) == 2
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	require.Equal(t, []string{msgs[0].Reply(), msgs[1].Reply()}, acked)
	mu.Unlock()

	js, err := jetstream.New(env.nc)
	require.NoError(t, err)
	cons, err := js.Consumer(t.Context(), "ORDERS", "splitsource-orders_eu")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		info, err := cons.Info(t.Context())
		return err == nil && info.NumAckPending == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSplitReader_AckWithoutReplyFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newReaderEnv(t)
	r := env.newReader(t, ReaderConfig{})

	err := r.NotifyCheckpointComplete(t.Context(), "orders.eu", []types.Message{fakeMessage{subject: "orders.eu"}})
	require.ErrorIs(t, err, types.ErrAcknowledgment)

	require.NoError(t, r.NotifyCheckpointComplete(t.Context(), "orders.eu", nil))
}

func TestSplitReader_WakeUpInterruptsFetch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newReaderEnv(t)
	r := env.newReader(t, ReaderConfig{FetchTimeout: 10 * time.Second})
	require.NoError(t, r.HandleSplitsChanges(t.Context(), types.NewSplitsAddition(types.NewSubjectSplit("orders.eu"))))

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		_, err := r.Fetch(t.Context())
		done <- err
	}()

	require.Eventually(t, func() bool { return r.State() == types.ReaderFetching }, time.Second, 5*time.Millisecond)
	r.WakeUp()

	select {
	case err := <-done:
		require.NoError(t, err)
		require.Less(t, time.Since(start), 5*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("fetch was not interrupted by WakeUp")
	}
	require.Equal(t, types.ReaderIdle, r.State())
}

func TestSplitReader_RebindsAfterReconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	env := newReaderEnv(t)
	r := env.newReader(t, ReaderConfig{MaxFetchRecords: 10, FetchTimeout: 500 * time.Millisecond})
	require.NoError(t, r.HandleSplitsChanges(t.Context(), types.NewSplitsAddition(types.NewSubjectSplit("orders.eu"))))

	cc, err := env.pool.Get(t.Context(), "orders.eu")
	require.NoError(t, err)
	cc.Conn.Close()

	sstesting.PublishMessages(t, env.nc, "orders.eu", 2)

	records, err := r.Fetch(t.Context())
	require.NoError(t, err)
	require.Equal(t, 2, records.Len())
}

func TestSplitReader_CloseIsIdempotent(t *testing.T) {
	r, err := NewSplitReader(connection.NewPool(nil), ReaderConfig{})
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	require.Equal(t, types.ReaderClosed, r.State())

	_, err = r.Fetch(t.Context())
	require.ErrorIs(t, err, types.ErrClosed)

	err = r.HandleSplitsChanges(t.Context(), types.NewSplitsAddition(types.NewSubjectSplit("orders.eu")))
	require.ErrorIs(t, err, types.ErrClosed)

	r.PauseOrResumeSplits([]types.Split{types.NewSubjectSplit("a")}, nil)
	r.WakeUp()
}

func TestSanitizeConsumerName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"splitsource-orders.eu", "splitsource-orders_eu"},
		{"p-orders.*", "p-orders__"},
		{"p-orders.>", "p-orders__"},
		{"p-a b/c\\d", "p-a_b_c_d"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, sanitizeConsumerName(tt.in), tt.in)
	}
}
