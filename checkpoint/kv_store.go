package checkpoint

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/splitsource/internal/kvutil"
	"github.com/arloliu/splitsource/internal/logging"
	"github.com/arloliu/splitsource/serializer"
	"github.com/arloliu/splitsource/types"
)

// Default KV settings.
const (
	DefaultBucket  = "splitsource-checkpoints"
	DefaultKey     = "enumerator"
	DefaultHistory = 5
)

// KVConfig configures a KVStore. Zero fields take the defaults above.
type KVConfig struct {
	Bucket   string
	Key      string
	History  uint8
	TTL      time.Duration
	Replicas int
	Storage  jetstream.StorageType

	Logger types.Logger
}

func (c *KVConfig) applyDefaults() {
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
	if c.Key == "" {
		c.Key = DefaultKey
	}
	if c.History == 0 {
		c.History = DefaultHistory
	}
	if c.Replicas == 0 {
		c.Replicas = 1
	}
	c.Logger = logging.OrNop(c.Logger)
}

// Snapshot is a stored enumerator checkpoint.
type Snapshot struct {
	CheckpointID int64
	Splits       []types.Split
	Revision     uint64
}

// KVStore saves and loads enumerator snapshots under one key of a KV bucket.
//
// The value layout is [int64 checkpoint id][int32 version][int32 length][checkpoint],
// big-endian, where checkpoint is the serializer.CheckpointSerializer encoding.
type KVStore struct {
	kv     jetstream.KeyValue
	key    string
	codec  serializer.CheckpointSerializer
	logger types.Logger
}

// NewKVStore opens (or creates) the checkpoint bucket.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - js: JetStream context
//   - cfg: Bucket configuration
//
// Returns:
//   - *KVStore: Store bound to cfg.Key
//   - error: Bucket creation error
//
// Example:
//
//	store, err := checkpoint.NewKVStore(ctx, js, checkpoint.KVConfig{Key: "orders-source"})
//	_, err = store.Save(ctx, checkpointID, enum.SnapshotState())
//	snap, err := store.Load(ctx)
//	enum, err := src.RestoreEnumerator(snap.Splits)
func NewKVStore(ctx context.Context, js jetstream.JetStream, cfg KVConfig) (*KVStore, error) {
	if js == nil {
		return nil, errors.New("JetStream context is required")
	}
	cfg.applyDefaults()

	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "splitsource enumerator checkpoints",
		History:     cfg.History,
		TTL:         cfg.TTL,
		Replicas:    cfg.Replicas,
		Storage:     cfg.Storage,
	}, kvutil.DefaultAttempts)
	if err != nil {
		return nil, err
	}

	return &KVStore{kv: kv, key: cfg.Key, logger: cfg.Logger}, nil
}

// Save stores splits as the snapshot of checkpointID.
//
// Returns:
//   - uint64: KV revision of the stored value
//   - error: Serialization or KV error
func (s *KVStore) Save(ctx context.Context, checkpointID int64, splits []types.Split) (uint64, error) {
	payload, err := serializer.WriteVersioned[[]types.Split](s.codec, splits)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize checkpoint %d: %w", checkpointID, err)
	}

	value := binary.BigEndian.AppendUint64(make([]byte, 0, 8+len(payload)), uint64(checkpointID))
	value = append(value, payload...)

	rev, err := s.kv.Put(ctx, s.key, value)
	if err != nil {
		return 0, fmt.Errorf("failed to store checkpoint %d: %w", checkpointID, err)
	}
	s.logger.Debug("checkpoint saved", "checkpoint", checkpointID, "splits", len(splits), "revision", rev)

	return rev, nil
}

// Load returns the latest snapshot.
//
// Returns:
//   - *Snapshot: Latest stored snapshot
//   - error: types.ErrCheckpointNotFound when nothing is stored, or a decode error
func (s *KVStore) Load(ctx context.Context) (*Snapshot, error) {
	entry, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if kvutil.IsMissing(err) {
			return nil, types.ErrCheckpointNotFound
		}

		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	return s.decode(entry)
}

// History returns the retained snapshots, oldest first. The bucket keeps up to
// KVConfig.History revisions; deletions are skipped.
//
// Returns:
//   - []*Snapshot: Retained snapshots
//   - error: types.ErrCheckpointNotFound when nothing is retained, or a decode error
func (s *KVStore) History(ctx context.Context) ([]*Snapshot, error) {
	entries, err := s.kv.History(ctx, s.key)
	if err != nil {
		if kvutil.IsMissing(err) {
			return nil, types.ErrCheckpointNotFound
		}

		return nil, fmt.Errorf("failed to read checkpoint history: %w", err)
	}

	snapshots := make([]*Snapshot, 0, len(entries))
	for _, entry := range entries {
		if entry.Operation() != jetstream.KeyValuePut {
			continue
		}
		snap, err := s.decode(entry)
		if err != nil {
			return nil, fmt.Errorf("revision %d: %w", entry.Revision(), err)
		}
		snapshots = append(snapshots, snap)
	}
	if len(snapshots) == 0 {
		return nil, types.ErrCheckpointNotFound
	}

	return snapshots, nil
}

func (s *KVStore) decode(entry jetstream.KeyValueEntry) (*Snapshot, error) {
	value := entry.Value()
	if len(value) < 8 {
		return nil, fmt.Errorf("%w: checkpoint value of %d bytes", types.ErrCorruptData, len(value))
	}
	splits, err := serializer.ReadVersioned[[]types.Split](s.codec, value[8:])
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		CheckpointID: int64(binary.BigEndian.Uint64(value)), //nolint:gosec // round-trips Save
		Splits:       splits,
		Revision:     entry.Revision(),
	}, nil
}

// Delete removes the stored snapshot. Deleting a missing snapshot is not an error.
func (s *KVStore) Delete(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil && !kvutil.IsMissing(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	return nil
}
