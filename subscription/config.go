package subscription

import (
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/splitsource/internal/logging"
	"github.com/arloliu/splitsource/internal/metrics"
	"github.com/arloliu/splitsource/types"
)

// ReaderConfig configures a SplitReader.
//
// All fields are optional. Zero values are replaced by defaults via applyDefaults().
// When StreamName is empty the stream is resolved from the split subject.
// The zero AckPolicy is jetstream.AckExplicitPolicy, which deferred acks require.
type ReaderConfig struct {
	StreamName     string
	ConsumerPrefix string
	IDPrefix       string

	MaxFetchRecords int
	FetchTimeout    time.Duration
	AckFlushTimeout time.Duration
	Boundedness     types.Boundedness
	FinishPolicy    types.FinishPolicy

	AckPolicy         jetstream.AckPolicy
	AckWait           time.Duration
	MaxDeliver        int
	InactiveThreshold time.Duration
	MaxWaiting        int

	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	RetrySeed       int64

	Logger  types.Logger
	Metrics types.MetricsCollector
}

// applyDefaults fills unset optional fields with project defaults.
func (cfg *ReaderConfig) applyDefaults() {
	if cfg.ConsumerPrefix == "" {
		cfg.ConsumerPrefix = DefaultConsumerPrefix
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = cfg.ConsumerPrefix
	}
	if cfg.MaxFetchRecords <= 0 {
		cfg.MaxFetchRecords = DefaultMaxFetchRecords
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.AckFlushTimeout <= 0 {
		cfg.AckFlushTimeout = DefaultAckFlushTimeout
	}
	if cfg.AckWait == 0 {
		cfg.AckWait = DefaultAckWait
	}
	if cfg.MaxDeliver == 0 {
		cfg.MaxDeliver = DefaultMaxDeliver
	}
	if cfg.InactiveThreshold == 0 {
		cfg.InactiveThreshold = DefaultInactiveThreshold
	}
	if cfg.MaxWaiting == 0 {
		cfg.MaxWaiting = DefaultMaxWaiting
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = DefaultMaxRetryBackoff
	}
	cfg.Logger = logging.OrNop(cfg.Logger)
	cfg.Metrics = metrics.OrNop(cfg.Metrics)
}
