package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/splitsource/connection"
	"github.com/arloliu/splitsource/internal/natsutil"
	"github.com/arloliu/splitsource/types"
)

// SplitReader pulls messages for a single split from a JetStream durable pull consumer.
//
// Lifecycle: Unassigned → Assigned → (Fetching ⇄ Idle) → Closed, with Finished as the
// bounded-mode terminal state. A reader accepts exactly one split; reattachment fails
// with types.ErrSplitAlreadyAssigned.
//
// Fetch is expected to be driven by a single goroutine. WakeUp, NotifyCheckpointComplete,
// State and Close are safe to call concurrently with an in-flight Fetch.
type SplitReader struct {
	id      string
	pool    *connection.Pool
	config  ReaderConfig
	logger  types.Logger
	metrics types.MetricsCollector

	mu          sync.Mutex
	state       types.ReaderState
	split       *types.Split
	stream      string
	durable     string
	consumer    jetstream.Consumer
	boundTo     *connection.Context // context the consumer handle was obtained on
	cancelFetch context.CancelFunc
	closed      bool
}

// NewSplitReader creates an unassigned reader.
//
// The reader id is generated as "<IDPrefix>-<uuid>". Connections are resolved through
// pool by split id before every broker operation.
//
// Parameters:
//   - pool: Connection pool shared by all readers of a source
//   - cfg: Reader configuration (defaults applied to zero fields)
//
// Returns:
//   - *SplitReader: Unassigned reader
//   - error: types.ErrConnectionFactoryRequired if pool is nil
//
// Example:
//
//	reader, err := subscription.NewSplitReader(pool, subscription.ReaderConfig{
//	    StreamName:      "ORDERS",
//	    MaxFetchRecords: 50,
//	    FetchTimeout:    time.Second,
//	})
//	if err := reader.HandleSplitsChanges(ctx, types.NewSplitsAddition(types.NewSubjectSplit("orders.eu"))); err != nil {
//	    return err
//	}
//	records, err := reader.Fetch(ctx)
func NewSplitReader(pool *connection.Pool, cfg ReaderConfig) (*SplitReader, error) {
	if pool == nil {
		return nil, types.ErrConnectionFactoryRequired
	}

	cfg.applyDefaults()

	return &SplitReader{
		id:      cfg.IDPrefix + "-" + uuid.NewString(),
		pool:    pool,
		config:  cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		state:   types.ReaderUnassigned,
	}, nil
}

// ID returns the generated reader id.
func (r *SplitReader) ID() string {
	return r.id
}

// State returns the current lifecycle state.
func (r *SplitReader) State() types.ReaderState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Split returns the registered split, if any.
func (r *SplitReader) Split() (types.Split, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.split == nil {
		return types.Split{}, false
	}

	return *r.split, true
}

// HandleSplitsChanges registers the split carried by an addition change and opens
// its durable pull consumer.
//
// Behavior:
//   - Only types.SplitsAddition is supported; other kinds fail with types.ErrUnsupportedSplitChange
//   - An empty addition is a no-op
//   - A second registration, or an addition carrying more than one split, fails with
//     types.ErrSplitAlreadyAssigned
//   - Consumer creation failures wrap types.ErrSubscription
//
// Parameters:
//   - ctx: Context for the consumer creation calls
//   - change: Split change to apply
//
// Returns:
//   - error: Contract violation, connection or subscription error
func (r *SplitReader) HandleSplitsChanges(ctx context.Context, change types.SplitsChange) error {
	r.logger.Debug("handle splits changes", "reader", r.id, "kind", change.Kind.String(), "splits", types.SplitIDs(change.Splits))

	if change.Kind != types.SplitsAddition {
		return fmt.Errorf("%w: %s", types.ErrUnsupportedSplitChange, change.Kind)
	}
	if len(change.Splits) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.ErrClosed
	}
	if r.split != nil {
		return fmt.Errorf("%w: reader %s holds split %s", types.ErrSplitAlreadyAssigned, r.id, r.split.ID)
	}
	if len(change.Splits) > 1 {
		return fmt.Errorf("%w: addition carries %d splits", types.ErrSplitAlreadyAssigned, len(change.Splits))
	}

	split := change.Splits[0]
	cc, err := r.pool.Get(ctx, split.ID)
	if err != nil {
		return err
	}

	stream, err := r.resolveStream(ctx, cc, split)
	if err != nil {
		return fmt.Errorf("%w: split %s: %w", types.ErrSubscription, split.ID, err)
	}

	durable := sanitizeConsumerName(r.config.ConsumerPrefix + "-" + split.ID)
	cons, err := r.createConsumer(ctx, cc, stream, durable, split.Subject)
	if err != nil {
		return fmt.Errorf("%w: split %s: %w", types.ErrSubscription, split.ID, err)
	}

	r.split = &split
	r.stream = stream
	r.durable = durable
	r.consumer = cons
	r.boundTo = cc
	r.state = types.ReaderAssigned

	r.logger.Info("registered split", "reader", r.id, "split", split.ID, "stream", stream, "durable", durable)

	return nil
}

// Fetch pulls up to MaxFetchRecords messages within FetchTimeout.
//
// Behavior:
//   - No registered split, or a finished split: empty result, no error
//   - Fetch expiry without messages is a normal empty result
//   - WakeUp interrupts the pull and returns the messages received so far
//   - Cancelling ctx returns the messages received so far with ctx.Err()
//   - In bounded mode the split is reported finished per FinishPolicy
//   - Other failures wrap types.ErrFetch
//
// Parameters:
//   - ctx: Context bounding the pull
//
// Returns:
//   - *types.RecordsBySplits: Messages tagged with the split id, plus finished splits
//   - error: Fetch or cancellation error
func (r *SplitReader) Fetch(ctx context.Context) (*types.RecordsBySplits, error) {
	records := types.NewRecordsBySplits()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return records, types.ErrClosed
	}
	if r.split == nil || r.state == types.ReaderFinished {
		r.mu.Unlock()
		return records, nil
	}
	split := *r.split
	fetchCtx, cancel := context.WithCancel(ctx)
	r.cancelFetch = cancel
	r.state = types.ReaderFetching
	r.mu.Unlock()

	finished := false
	defer func() {
		cancel()
		r.mu.Lock()
		r.cancelFetch = nil
		if r.state == types.ReaderFetching {
			if finished {
				r.state = types.ReaderFinished
			} else {
				r.state = types.ReaderIdle
			}
		}
		r.mu.Unlock()
	}()

	start := time.Now()
	msgs, err := r.pull(fetchCtx, split)
	r.metrics.RecordFetch(split.ID, len(msgs), time.Since(start).Seconds(), err != nil)

	for _, msg := range msgs {
		records.Add(split.ID, msg)
	}

	if err != nil {
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
		if fetchCtx.Err() == nil {
			r.invalidateOnConnectivity(split.ID, err)
			return records, fmt.Errorf("%w: split %s: %w", types.ErrFetch, split.ID, err)
		}
		// Interrupted by WakeUp.
		r.logger.Debug("fetch woken up", "reader", r.id, "split", split.ID, "received", len(msgs))

		return records, nil
	}

	if r.config.Boundedness == types.Bounded && r.config.FinishPolicy.Finished(len(msgs), r.config.MaxFetchRecords) {
		finished = true
		records.AddFinished(split.ID)
		r.logger.Info("bounded split finished", "reader", r.id, "split", split.ID, "lastBatch", len(msgs))
	}

	r.logger.Debug("fetched messages", "reader", r.id, "split", split.ID, "count", len(msgs))

	return records, nil
}

// pull issues one bounded fetch and drains its batch until completion or cancellation.
func (r *SplitReader) pull(ctx context.Context, split types.Split) ([]jetstream.Msg, error) {
	cons, err := r.resolveConsumer(ctx, split)
	if err != nil {
		return nil, err
	}

	batch, err := cons.Fetch(r.config.MaxFetchRecords, jetstream.FetchMaxWait(r.config.FetchTimeout))
	if err != nil {
		if natsutil.IsFetchExpired(err) {
			return nil, nil
		}

		return nil, err
	}

	msgs := make([]jetstream.Msg, 0, r.config.MaxFetchRecords)
	for {
		select {
		case <-ctx.Done():
			return msgs, ctx.Err()
		case msg, ok := <-batch.Messages():
			if !ok {
				if err := batch.Error(); err != nil && !natsutil.IsFetchExpired(err) {
					return msgs, err
				}

				return msgs, nil
			}
			msgs = append(msgs, msg)
		}
	}
}

// resolveConsumer returns the consumer handle, rebinding it when the pool replaced
// the split's connection since the handle was obtained.
func (r *SplitReader) resolveConsumer(ctx context.Context, split types.Split) (jetstream.Consumer, error) {
	cc, err := r.pool.Get(ctx, split.ID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.consumer != nil && r.boundTo == cc {
		return r.consumer, nil
	}

	cons, err := cc.JS.Consumer(ctx, r.stream, r.durable)
	if err != nil {
		return nil, fmt.Errorf("failed to rebind consumer %s: %w", r.durable, err)
	}
	r.consumer = cons
	r.boundTo = cc
	r.logger.Info("rebound consumer to new connection", "reader", r.id, "split", split.ID, "durable", r.durable)

	return cons, nil
}

// NotifyCheckpointComplete acknowledges msgs by publishing the ack body to each
// message's reply subject, in order.
//
// The split's pooled connection is used; no registered split or open consumer is
// needed, so acks for a split whose fetcher has been replaced still succeed.
//
// Parameters:
//   - ctx: Context for connection resolution
//   - splitID: Split the messages were fetched from
//   - msgs: Pending messages of that split
//
// Returns:
//   - error: Wrapped types.ErrAcknowledgment on any publish or flush failure
func (r *SplitReader) NotifyCheckpointComplete(ctx context.Context, splitID string, msgs []types.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: split %s: %w", types.ErrAcknowledgment, splitID, types.ErrClosed)
	}

	cc, err := r.pool.Get(ctx, splitID)
	if err != nil {
		r.metrics.RecordAcknowledged(splitID, 0, false)
		return fmt.Errorf("%w: split %s: %w", types.ErrAcknowledgment, splitID, err)
	}

	for i, msg := range msgs {
		reply := msg.Reply()
		if reply == "" {
			r.metrics.RecordAcknowledged(splitID, i, false)
			return fmt.Errorf("%w: split %s: message %d has no reply subject", types.ErrAcknowledgment, splitID, i)
		}
		if err := cc.Conn.Publish(reply, ackBody); err != nil {
			r.metrics.RecordAcknowledged(splitID, i, false)
			r.invalidate(splitID, cc, err)
			return fmt.Errorf("%w: split %s: %w", types.ErrAcknowledgment, splitID, err)
		}
	}

	if err := cc.Conn.FlushTimeout(r.config.AckFlushTimeout); err != nil {
		r.metrics.RecordAcknowledged(splitID, len(msgs), false)
		r.invalidate(splitID, cc, err)
		return fmt.Errorf("%w: split %s: flush: %w", types.ErrAcknowledgment, splitID, err)
	}

	r.metrics.RecordAcknowledged(splitID, len(msgs), true)
	r.logger.Debug("acknowledged messages", "reader", r.id, "split", splitID, "count", len(msgs))

	return nil
}

// invalidateOnConnectivity drops the connection the consumer handle is bound to
// when err is a connectivity failure.
func (r *SplitReader) invalidateOnConnectivity(splitID string, err error) {
	r.mu.Lock()
	cc := r.boundTo
	r.mu.Unlock()

	r.invalidate(splitID, cc, err)
}

func (r *SplitReader) invalidate(splitID string, cc *connection.Context, err error) {
	if !natsutil.IsConnectivityError(err) {
		return
	}
	if r.pool.Invalidate(splitID, cc) {
		r.logger.Warn("dropped pooled connection after connectivity error", "reader", r.id, "split", splitID, "error", err)
	}
}

// PauseOrResumeSplits is accepted but not enforced: the pull loop is not paused.
func (r *SplitReader) PauseOrResumeSplits(pause, resume []types.Split) {
	r.logger.Debug("pause or resume splits not enforced", "reader", r.id,
		"pause", types.SplitIDs(pause), "resume", types.SplitIDs(resume))
}

// WakeUp interrupts an in-flight Fetch. It is a no-op when no fetch is running.
func (r *SplitReader) WakeUp() {
	r.mu.Lock()
	cancel := r.cancelFetch
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Close releases the consumer handle and interrupts an in-flight fetch.
//
// The durable consumer is NOT deleted from the stream: its position survives restarts
// and JetStream removes it after InactiveThreshold. Close is idempotent.
func (r *SplitReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.state = types.ReaderClosed
	if r.cancelFetch != nil {
		r.cancelFetch()
	}
	r.consumer = nil
	r.boundTo = nil

	splitID := ""
	if r.split != nil {
		splitID = r.split.ID
	}
	r.logger.Debug("split reader closed", "reader", r.id, "split", splitID)

	return nil
}

// resolveStream returns the configured stream or looks it up by subject.
func (r *SplitReader) resolveStream(ctx context.Context, cc *connection.Context, split types.Split) (string, error) {
	if r.config.StreamName != "" {
		return r.config.StreamName, nil
	}

	stream, err := cc.JS.StreamNameBySubject(ctx, split.Subject)
	if err != nil {
		return "", fmt.Errorf("failed to resolve stream for subject %s: %w", split.Subject, err)
	}

	return stream, nil
}

// createConsumer creates or updates the durable consumer with jittered retries.
func (r *SplitReader) createConsumer(ctx context.Context, cc *connection.Context, stream, durable, subject string) (jetstream.Consumer, error) {
	cfg := jetstream.ConsumerConfig{
		Name:              durable,
		Durable:           durable,
		FilterSubject:     subject,
		AckPolicy:         r.config.AckPolicy,
		AckWait:           r.config.AckWait,
		MaxDeliver:        r.config.MaxDeliver,
		InactiveThreshold: r.config.InactiveThreshold,
		MaxWaiting:        r.config.MaxWaiting,
	}

	retry := newRetryPolicy(r.config)
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		cons, err := cc.JS.CreateOrUpdateConsumer(ctx, stream, cfg)
		if err == nil {
			return cons, nil
		}
		lastErr = err

		// A missing stream never heals by retrying.
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			break
		}
		if attempt >= r.config.MaxRetries {
			break
		}

		delay := retry.next()
		r.logger.Warn("consumer creation failed, retrying", "durable", durable, "attempt", attempt+1, "delay", delay, "error", err)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to create durable consumer %s on stream %s: %w", durable, stream, lastErr)
}

// sanitizeConsumerName replaces characters NATS forbids in consumer names with underscore (_).
//
// Forbidden: whitespace, '.', '*', '>', path separators and non-printable characters.
func sanitizeConsumerName(name string) string {
	var result strings.Builder
	result.Grow(len(name))

	for _, r := range name {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' ||
			r == '.' || r == '*' || r == '>' ||
			r == '/' || r == '\\' ||
			r < 32 || r == 127 {
			result.WriteRune('_')
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}
