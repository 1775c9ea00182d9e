package splitsource

import (
	"github.com/arloliu/splitsource/connection"
)

// Option configures a Source with optional dependencies.
type Option func(*sourceOptions)

// sourceOptions holds optional Source configuration.
type sourceOptions struct {
	factory     connection.Factory
	splitSource SplitSource
	strategy    AssignmentStrategy
	hooks       *Hooks
	metrics     MetricsCollector
	logger      Logger
}

// WithConnectionFactory sets the factory used to open per-split NATS connections.
//
// The default factory dials Config.URL with no extra options. Provide a custom
// factory to add credentials, TLS or connection names.
//
// Parameters:
//   - factory: connection.Factory implementation
//
// Returns:
//   - Option: Functional option for NewSource
//
// Example:
//
//	factory := connection.NewNATSFactory(url, nats.UserCredentials("svc.creds"))
//	src, err := splitsource.NewSource[Order](cfg, deser, splitsource.WithConnectionFactory(factory))
func WithConnectionFactory(factory connection.Factory) Option {
	return func(o *sourceOptions) {
		o.factory = factory
	}
}

// WithSplitSource sets the source of the initial split set.
//
// The default is a static list built from Config.Subjects.
//
// Parameters:
//   - src: SplitSource implementation
//
// Returns:
//   - Option: Functional option for NewSource
//
// Example:
//
//	src, err := splitsource.NewSource[Order](cfg, deser,
//	    splitsource.WithSplitSource(source.NewStreamSubjects(js, "ORDERS", "orders.>")))
func WithSplitSource(src SplitSource) Option {
	return func(o *sourceOptions) {
		o.splitSource = src
	}
}

// WithStrategy sets the strategy the enumerator assigns splits with.
//
// Parameters:
//   - strategy: AssignmentStrategy implementation (default strategy.NewRoundRobin())
//
// Returns:
//   - Option: Functional option for NewSource
func WithStrategy(strategy AssignmentStrategy) Option {
	return func(o *sourceOptions) {
		o.strategy = strategy
	}
}

// WithHooks sets reader lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewSource
//
// Example:
//
//	hooks := &splitsource.Hooks{
//	    OnSplitFinished: func(ctx context.Context, splitID string) error {
//	        log.Printf("split %s done", splitID)
//	        return nil
//	    },
//	}
//	src, err := splitsource.NewSource[Order](cfg, deser, splitsource.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *sourceOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewSource
//
// Example:
//
//	collector := splitsource.NewPrometheusMetrics(prometheus.DefaultRegisterer, "splitsource")
//	src, err := splitsource.NewSource[Order](cfg, deser, splitsource.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *sourceOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewSource
//
// Example:
//
//	logger := splitsource.NewZapLogger(zap.NewExample())
//	src, err := splitsource.NewSource[Order](cfg, deser, splitsource.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *sourceOptions) {
		o.logger = logger
	}
}
