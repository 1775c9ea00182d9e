// Package kvutil holds helpers for the JetStream KV buckets that store checkpoints.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultAttempts is the number of bucket resolution attempts when none is given.
const DefaultAttempts = 3

// EnsureBucket opens the bucket described by cfg, creating it when missing.
//
// Readers and restarts may race to create the same checkpoint bucket; the loser
// of a creation race opens the winner's bucket. Other failures are retried with
// a delay doubling from 10ms.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - cfg: KV bucket configuration, applied only on creation
//   - attempts: Maximum number of attempts (DefaultAttempts when <= 0)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket
//   - error: ctx.Err() or the last failure
//
// Example:
//
//	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
//	    Bucket:  "splitsource-checkpoints",
//	    History: 5,
//	}, 0)
func EnsureBucket(
	ctx context.Context,
	js jetstream.JetStream,
	cfg jetstream.KeyValueConfig,
	attempts int,
) (jetstream.KeyValue, error) {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	delay := 10 * time.Millisecond
	var lastErr error
	for attempt := 1; ; attempt++ {
		kv, err := openOrCreate(ctx, js, cfg)
		if err == nil {
			return kv, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("checkpoint bucket %s: %w", cfg.Bucket, ctx.Err())
		}
		if attempt >= attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("checkpoint bucket %s: %w", cfg.Bucket, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}

	return nil, fmt.Errorf("failed to open or create KV bucket %s after %d attempts: %w",
		cfg.Bucket, attempts, lastErr)
}

func openOrCreate(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, cfg.Bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, err
	}

	kv, err = js.CreateKeyValue(ctx, cfg)
	if errors.Is(err, jetstream.ErrBucketExists) {
		return js.KeyValue(ctx, cfg.Bucket)
	}

	return kv, err
}

// IsMissing reports whether err means a key holds no live value: never written,
// deleted, or without history.
func IsMissing(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) ||
		errors.Is(err, jetstream.ErrKeyDeleted) ||
		errors.Is(err, jetstream.ErrNoKeysFound)
}
