package enumerator

import (
	"github.com/arloliu/splitsource/internal/logging"
	"github.com/arloliu/splitsource/internal/metrics"
	"github.com/arloliu/splitsource/strategy"
	"github.com/arloliu/splitsource/types"
)

// Option configures an Enumerator.
type Option func(*options)

type options struct {
	strategy    types.AssignmentStrategy
	boundedness types.Boundedness
	logger      types.Logger
	metrics     types.MetricsCollector
}

func defaultOptions() options {
	return options{
		strategy:    strategy.NewRoundRobin(),
		boundedness: types.ContinuousUnbounded,
		logger:      logging.NewNop(),
		metrics:     metrics.NewNop(),
	}
}

// WithStrategy sets the assignment strategy (default round-robin).
func WithStrategy(s types.AssignmentStrategy) Option {
	return func(o *options) {
		if s != nil {
			o.strategy = s
		}
	}
}

// WithBoundedness sets the source boundedness. Only bounded enumerators accept
// finished splits.
func WithBoundedness(b types.Boundedness) Option {
	return func(o *options) {
		o.boundedness = b
	}
}

// WithLogger sets the enumerator logger.
func WithLogger(logger types.Logger) Option {
	return func(o *options) {
		o.logger = logging.OrNop(logger)
	}
}

// WithMetrics sets the enumerator metrics collector.
func WithMetrics(mc types.MetricsCollector) Option {
	return func(o *options) {
		o.metrics = metrics.OrNop(mc)
	}
}
