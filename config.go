package splitsource

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/nats-io/nats.go"

	"github.com/arloliu/splitsource/checkpoint"
	"github.com/arloliu/splitsource/subscription"
	"github.com/arloliu/splitsource/types"
)

// EnvPrefix is the environment variable prefix read by LoadConfig.
//
// Nested keys use a double underscore: SPLITSOURCE__CHECKPOINT__BUCKET sets
// checkpoint.bucket.
const EnvPrefix = "SPLITSOURCE__"

// Finish policy names accepted in configuration.
const (
	FinishPolicyAtOrBelowMax = "at_or_below_max"
	FinishPolicyBelowMax     = "below_max"
)

// CheckpointConfig configures the KV bucket holding enumerator snapshots.
type CheckpointConfig struct {
	// Bucket is the KV bucket name.
	Bucket string `yaml:"bucket" koanf:"bucket"`

	// Key is the key the snapshot is stored under. Use one key per source.
	Key string `yaml:"key" koanf:"key"`

	// History is the number of snapshot revisions kept by the bucket.
	History uint8 `yaml:"history" koanf:"history"`
}

// Config is the configuration for a Source.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// URL is the NATS server URL used by the default connection factory.
	URL string `yaml:"url" koanf:"url"`

	// StreamName is the JetStream stream holding the subjects. When empty the
	// stream is looked up by subject for every split.
	StreamName string `yaml:"streamName" koanf:"streamName"`

	// Subjects are the split addresses of the default static split source.
	Subjects []string `yaml:"subjects" koanf:"subjects"`

	// ConsumerPrefix prefixes durable consumer names: <prefix>-<split id>.
	// Keep it stable across restarts so consumers resume their position.
	ConsumerPrefix string `yaml:"consumerPrefix" koanf:"consumerPrefix"`

	// ReaderIDPrefix prefixes generated reader ids: <prefix>-<uuid>.
	ReaderIDPrefix string `yaml:"readerIdPrefix" koanf:"readerIdPrefix"`

	// MaxFetchRecords is the maximum number of messages pulled per fetch.
	MaxFetchRecords int `yaml:"maxFetchRecords" koanf:"maxFetchRecords"`

	// FetchTimeout bounds the wait of one pull request.
	FetchTimeout time.Duration `yaml:"fetchTimeout" koanf:"fetchTimeout"`

	// AckFlushTimeout bounds the flush after publishing acknowledgments.
	AckFlushTimeout time.Duration `yaml:"ackFlushTimeout" koanf:"ackFlushTimeout"`

	// AckWait is the consumer's redelivery timeout. Acknowledgments are deferred
	// until checkpoint completion, so it must exceed the checkpoint interval.
	AckWait time.Duration `yaml:"ackWait" koanf:"ackWait"`

	// MaxDeliver limits redeliveries per message (-1 for unlimited).
	MaxDeliver int `yaml:"maxDeliver" koanf:"maxDeliver"`

	// InactiveThreshold is how long an unused durable consumer is kept by the server.
	InactiveThreshold time.Duration `yaml:"inactiveThreshold" koanf:"inactiveThreshold"`

	// Bounded makes every split finish once its finish policy is met.
	Bounded bool `yaml:"bounded" koanf:"bounded"`

	// FinishPolicy is "at_or_below_max" (default) or "below_max".
	FinishPolicy string `yaml:"finishPolicy" koanf:"finishPolicy"`

	// QueueCapacity is the number of fetched batches buffered for Poll.
	QueueCapacity int `yaml:"queueCapacity" koanf:"queueCapacity"`

	// MaxRetries is the number of consumer creation attempts per split.
	MaxRetries int `yaml:"maxRetries" koanf:"maxRetries"`

	// RetryBackoff is the initial backoff between consumer creation attempts.
	RetryBackoff time.Duration `yaml:"retryBackoff" koanf:"retryBackoff"`

	// MaxRetryBackoff caps the backoff between consumer creation attempts.
	MaxRetryBackoff time.Duration `yaml:"maxRetryBackoff" koanf:"maxRetryBackoff"`

	// ShutdownTimeout is the maximum time Close waits for fetchers to stop.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" koanf:"shutdownTimeout"`

	// Checkpoint configures the snapshot KV bucket.
	Checkpoint CheckpointConfig `yaml:"checkpoint" koanf:"checkpoint"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		URL:               nats.DefaultURL,
		ConsumerPrefix:    subscription.DefaultConsumerPrefix,
		ReaderIDPrefix:    "reader",
		MaxFetchRecords:   subscription.DefaultMaxFetchRecords,
		FetchTimeout:      subscription.DefaultFetchTimeout,
		AckFlushTimeout:   subscription.DefaultAckFlushTimeout,
		AckWait:           subscription.DefaultAckWait,
		MaxDeliver:        subscription.DefaultMaxDeliver,
		InactiveThreshold: subscription.DefaultInactiveThreshold,
		FinishPolicy:      FinishPolicyAtOrBelowMax,
		QueueCapacity:     2,
		MaxRetries:        subscription.DefaultMaxRetries,
		RetryBackoff:      subscription.DefaultRetryBackoff,
		MaxRetryBackoff:   subscription.DefaultMaxRetryBackoff,
		ShutdownTimeout:   10 * time.Second,
		Checkpoint: CheckpointConfig{
			Bucket:  checkpoint.DefaultBucket,
			Key:     checkpoint.DefaultKey,
			History: checkpoint.DefaultHistory,
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.URL == "" {
		cfg.URL = defaults.URL
	}
	if cfg.ConsumerPrefix == "" {
		cfg.ConsumerPrefix = defaults.ConsumerPrefix
	}
	if cfg.ReaderIDPrefix == "" {
		cfg.ReaderIDPrefix = defaults.ReaderIDPrefix
	}
	if cfg.MaxFetchRecords == 0 {
		cfg.MaxFetchRecords = defaults.MaxFetchRecords
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = defaults.FetchTimeout
	}
	if cfg.AckFlushTimeout == 0 {
		cfg.AckFlushTimeout = defaults.AckFlushTimeout
	}
	if cfg.AckWait == 0 {
		cfg.AckWait = defaults.AckWait
	}
	if cfg.MaxDeliver == 0 {
		cfg.MaxDeliver = defaults.MaxDeliver
	}
	if cfg.InactiveThreshold == 0 {
		cfg.InactiveThreshold = defaults.InactiveThreshold
	}
	if cfg.FinishPolicy == "" {
		cfg.FinishPolicy = defaults.FinishPolicy
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = defaults.QueueCapacity
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = defaults.RetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.Checkpoint.Bucket == "" {
		cfg.Checkpoint.Bucket = defaults.Checkpoint.Bucket
	}
	if cfg.Checkpoint.Key == "" {
		cfg.Checkpoint.Key = defaults.Checkpoint.Key
	}
	if cfg.Checkpoint.History == 0 {
		cfg.Checkpoint.History = defaults.Checkpoint.History
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - MaxFetchRecords > 0
//   - FetchTimeout > 0 and AckFlushTimeout > 0
//   - AckWait > FetchTimeout (pulled messages must not be redelivered mid-batch)
//   - MaxDeliver is -1 or > 0
//   - FinishPolicy is a known policy name
//   - QueueCapacity > 0
//   - RetryBackoff <= MaxRetryBackoff
//
// Returns:
//   - error: Validation error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if cfg.MaxFetchRecords <= 0 {
		return fmt.Errorf("%w: MaxFetchRecords must be > 0, got %d", ErrInvalidConfig, cfg.MaxFetchRecords)
	}
	if cfg.FetchTimeout <= 0 {
		return fmt.Errorf("%w: FetchTimeout must be > 0, got %v", ErrInvalidConfig, cfg.FetchTimeout)
	}
	if cfg.AckFlushTimeout <= 0 {
		return fmt.Errorf("%w: AckFlushTimeout must be > 0, got %v", ErrInvalidConfig, cfg.AckFlushTimeout)
	}
	if cfg.AckWait <= cfg.FetchTimeout {
		return fmt.Errorf(
			"%w: AckWait (%v) must be > FetchTimeout (%v)",
			ErrInvalidConfig, cfg.AckWait, cfg.FetchTimeout,
		)
	}
	if cfg.MaxDeliver == 0 || cfg.MaxDeliver < -1 {
		return fmt.Errorf("%w: MaxDeliver must be -1 or > 0, got %d", ErrInvalidConfig, cfg.MaxDeliver)
	}
	if _, err := cfg.finishPolicy(); err != nil {
		return err
	}
	if cfg.QueueCapacity <= 0 {
		return fmt.Errorf("%w: QueueCapacity must be > 0, got %d", ErrInvalidConfig, cfg.QueueCapacity)
	}
	if cfg.RetryBackoff > cfg.MaxRetryBackoff {
		return fmt.Errorf(
			"%w: RetryBackoff (%v) must be <= MaxRetryBackoff (%v)",
			ErrInvalidConfig, cfg.RetryBackoff, cfg.MaxRetryBackoff,
		)
	}

	return nil
}

// ValidateWithWarnings logs warnings for values that are valid but risky.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.AckWait < time.Minute {
		logger.Warn(
			"AckWait is short, messages may be redelivered before their checkpoint completes",
			"ackWait", cfg.AckWait,
			"recommended", "longer than the checkpoint interval",
		)
	}
	if cfg.Bounded && cfg.FinishPolicy == FinishPolicyAtOrBelowMax {
		logger.Warn(
			"bounded splits finish after their first fetch with finish policy at_or_below_max",
			"finishPolicy", cfg.FinishPolicy,
			"maxFetchRecords", cfg.MaxFetchRecords,
		)
	}
}

// Boundedness returns the configured boundedness.
func (cfg *Config) Boundedness() types.Boundedness {
	if cfg.Bounded {
		return types.Bounded
	}

	return types.ContinuousUnbounded
}

func (cfg *Config) finishPolicy() (types.FinishPolicy, error) {
	switch cfg.FinishPolicy {
	case "", FinishPolicyAtOrBelowMax:
		return types.FinishAtOrBelowMax, nil
	case FinishPolicyBelowMax:
		return types.FinishBelowMax, nil
	default:
		return 0, fmt.Errorf("%w: unknown FinishPolicy %q", ErrInvalidConfig, cfg.FinishPolicy)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := splitsource.TestConfig()
//	cfg.Subjects = []string{"orders.eu", "orders.us"}
//	src, err := splitsource.NewSource[string](cfg, splitsource.StringDeserializer{})
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.FetchTimeout = 200 * time.Millisecond
	cfg.AckFlushTimeout = time.Second
	cfg.AckWait = 30 * time.Second
	cfg.InactiveThreshold = time.Minute
	cfg.RetryBackoff = 10 * time.Millisecond
	cfg.MaxRetryBackoff = 100 * time.Millisecond
	cfg.ShutdownTimeout = 2 * time.Second

	return cfg
}

// LoadConfig reads a Config from a YAML file merged with SPLITSOURCE__ environment
// variables, then applies defaults and validates it.
//
// A missing file is not an error. Environment keys are lowercased and "__" becomes
// the nesting delimiter; field matching is case-insensitive.
//
// Parameters:
//   - path: YAML file path (empty to read only the environment)
//
// Returns:
//   - Config: Loaded configuration
//   - error: Parse, decode or validation error
//
// Example:
//
//	// SPLITSOURCE__STREAMNAME=ORDERS SPLITSOURCE__CHECKPOINT__KEY=orders
//	cfg, err := splitsource.LoadConfig("splitsource.yaml")
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envKey := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
