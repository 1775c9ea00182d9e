package splitsource

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/splitsource/checkpoint"
	"github.com/arloliu/splitsource/connection"
	"github.com/arloliu/splitsource/enumerator"
	"github.com/arloliu/splitsource/fetcher"
	"github.com/arloliu/splitsource/internal/hooks"
	"github.com/arloliu/splitsource/internal/logging"
	"github.com/arloliu/splitsource/internal/metrics"
	"github.com/arloliu/splitsource/serializer"
	"github.com/arloliu/splitsource/source"
	"github.com/arloliu/splitsource/strategy"
	"github.com/arloliu/splitsource/subscription"
	"github.com/arloliu/splitsource/types"
)

// Source is the entry point of the library: it builds enumerators, readers and
// serializers that share one configuration.
//
// Source itself holds no runtime state and is safe for concurrent use.
type Source[T any] struct {
	cfg          Config
	finishPolicy types.FinishPolicy
	deser        PayloadDeserializer[T]

	factory     connection.Factory
	splitSource SplitSource
	strategy    AssignmentStrategy
	hooks       Hooks
	metrics     MetricsCollector
	logger      Logger
}

// NewSource creates a Source decoding payloads with deser.
//
// Returns a concrete *Source following the "accept interfaces, return structs"
// principle.
//
// Parameters:
//   - cfg: Configuration (defaults are applied to zero fields)
//   - deser: Payload deserializer
//   - opts: Optional connection factory, split source, strategy, hooks, metrics, logger
//
// Returns:
//   - *Source[T]: Initialized source
//   - error: ErrDeserializerRequired or a validation error
//
// Example:
//
//	cfg := splitsource.DefaultConfig()
//	cfg.StreamName = "ORDERS"
//	cfg.Subjects = []string{"orders.eu", "orders.us"}
//	src, err := splitsource.NewSource[Order](cfg, splitsource.JSONDeserializer[Order]{})
func NewSource[T any](cfg Config, deser PayloadDeserializer[T], opts ...Option) (*Source[T], error) {
	if deser == nil {
		return nil, ErrDeserializerRequired
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := cfg.finishPolicy()
	if err != nil {
		return nil, err
	}

	options := &sourceOptions{}
	for _, opt := range opts {
		opt(options)
	}

	s := &Source[T]{
		cfg:          cfg,
		finishPolicy: policy,
		deser:        deser,
		factory:      options.factory,
		splitSource:  options.splitSource,
		strategy:     options.strategy,
		hooks:        hooks.Fill(options.hooks),
		metrics:      metrics.OrNop(options.metrics),
		logger:       logging.OrNop(options.logger),
	}
	if s.factory == nil {
		s.factory = connection.NewNATSFactory(cfg.URL)
	}
	if s.splitSource == nil {
		s.splitSource = source.NewStatic(cfg.Subjects...)
	}
	if s.strategy == nil {
		s.strategy = strategy.NewRoundRobin()
	}

	cfg.ValidateWithWarnings(s.logger)

	return s, nil
}

// Config returns the effective configuration.
func (s *Source[T]) Config() Config {
	return s.cfg
}

// Boundedness returns whether splits of this source finish on their own.
func (s *Source[T]) Boundedness() Boundedness {
	return s.cfg.Boundedness()
}

// CreateEnumerator lists the splits of the configured split source and returns an
// enumerator tracking them.
//
// Parameters:
//   - ctx: Context for split discovery
//
// Returns:
//   - *enumerator.Enumerator: Uninitialized enumerator
//   - error: Split discovery error
func (s *Source[T]) CreateEnumerator(ctx context.Context) (*enumerator.Enumerator, error) {
	splits, err := s.splitSource.ListSplits(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	s.logger.Info("creating enumerator", "splits", types.SplitIDs(splits), "boundedness", s.Boundedness().String())

	return enumerator.New(splits, s.enumeratorOptions()...), nil
}

// RestoreEnumerator returns an enumerator tracking exactly the splits of snapshot.
func (s *Source[T]) RestoreEnumerator(snapshot []Split) *enumerator.Enumerator {
	return enumerator.Restore(snapshot, s.enumeratorOptions()...)
}

func (s *Source[T]) enumeratorOptions() []enumerator.Option {
	return []enumerator.Option{
		enumerator.WithStrategy(s.strategy),
		enumerator.WithBoundedness(s.Boundedness()),
		enumerator.WithLogger(s.logger),
		enumerator.WithMetrics(s.metrics),
	}
}

// SplitSerializer returns the versioned split codec.
func (s *Source[T]) SplitSerializer() serializer.SplitSerializer {
	return serializer.SplitSerializer{}
}

// EnumeratorCheckpointSerializer returns the versioned enumerator snapshot codec.
func (s *Source[T]) EnumeratorCheckpointSerializer() serializer.CheckpointSerializer {
	return serializer.CheckpointSerializer{}
}

// PayloadDeserializer returns the payload deserializer.
func (s *Source[T]) PayloadDeserializer() PayloadDeserializer[T] {
	return s.deser
}

// NewCheckpointStore opens the KV checkpoint store configured by Config.Checkpoint.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - js: JetStream context of the coordinating connection
//
// Returns:
//   - *checkpoint.KVStore: Snapshot store
//   - error: Bucket creation error
func (s *Source[T]) NewCheckpointStore(ctx context.Context, js jetstream.JetStream) (*checkpoint.KVStore, error) {
	return checkpoint.NewKVStore(ctx, js, checkpoint.KVConfig{
		Bucket:  s.cfg.Checkpoint.Bucket,
		Key:     s.cfg.Checkpoint.Key,
		History: s.cfg.Checkpoint.History,
		Logger:  s.logger,
	})
}

// NewReaderContext registers a reader named <ReaderIDPrefix>-<uuid> with enum.
func (s *Source[T]) NewReaderContext(enum *enumerator.Enumerator) (*LocalReaderContext, error) {
	return NewLocalReaderContext(enum, s.cfg.ReaderIDPrefix+"-"+uuid.NewString())
}

// CreateSplitReader returns an unassigned single-split reader using pool.
func (s *Source[T]) CreateSplitReader(pool *connection.Pool) (*subscription.SplitReader, error) {
	return subscription.NewSplitReader(pool, s.readerConfig())
}

func (s *Source[T]) readerConfig() subscription.ReaderConfig {
	return subscription.ReaderConfig{
		StreamName:        s.cfg.StreamName,
		ConsumerPrefix:    s.cfg.ConsumerPrefix,
		MaxFetchRecords:   s.cfg.MaxFetchRecords,
		FetchTimeout:      s.cfg.FetchTimeout,
		AckFlushTimeout:   s.cfg.AckFlushTimeout,
		Boundedness:       s.Boundedness(),
		FinishPolicy:      s.finishPolicy,
		AckWait:           s.cfg.AckWait,
		MaxDeliver:        s.cfg.MaxDeliver,
		InactiveThreshold: s.cfg.InactiveThreshold,
		MaxRetries:        s.cfg.MaxRetries,
		RetryBackoff:      s.cfg.RetryBackoff,
		MaxRetryBackoff:   s.cfg.MaxRetryBackoff,
		Logger:            s.logger,
		Metrics:           s.metrics,
	}
}

// CreateReader returns a Reader with its own connection pool and fetcher manager.
//
// Parameters:
//   - readerCtx: Link to the enumerator owning the reader's splits
//
// Returns:
//   - *Reader[T]: Reader that must be started before use
//   - error: Missing reader context
//
// Example:
//
//	reader, err := src.CreateReader(rctx)
//	if err := reader.Start(ctx); err != nil {
//	    return err
//	}
//	defer reader.Close(context.Background())
func (s *Source[T]) CreateReader(readerCtx ReaderContext) (*Reader[T], error) {
	if readerCtx == nil {
		return nil, fmt.Errorf("%w: reader context is required", ErrInvalidConfig)
	}

	pool := connection.NewPool(s.factory,
		connection.WithLogger(s.logger),
		connection.WithMetrics(s.metrics),
	)
	manager := fetcher.NewManager(
		func() (fetcher.SplitReader, error) {
			return s.CreateSplitReader(pool)
		},
		fetcher.WithConnectionReleaser(pool),
		fetcher.WithQueueCapacity(s.cfg.QueueCapacity),
		fetcher.WithLogger(s.logger),
		fetcher.WithMetrics(s.metrics),
	)

	return newReader(readerCtx, s.deser, pool, manager, readerOptions{
		shutdownTimeout: s.cfg.ShutdownTimeout,
		hooks:           s.hooks,
		logger:          s.logger,
		metrics:         s.metrics,
	}), nil
}
