package serializer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/arloliu/splitsource/types"
)

// CurrentVersion is the only version this package reads and writes.
const CurrentVersion = 1

// ErrUnrepresentable is returned for splits the current version cannot encode:
// the id must equal the subject, the subject must be valid UTF-8 and the cursor
// must be empty.
var ErrUnrepresentable = errors.New("split cannot be represented in serializer version")

// Versioned serializes values of T together with a format version.
type Versioned[T any] interface {
	// Version returns the version Serialize writes.
	Version() int
	// Serialize encodes v.
	Serialize(v T) ([]byte, error)
	// Deserialize decodes data written with the given version.
	Deserialize(version int, data []byte) (T, error)
}

// SplitSerializer encodes a single split.
type SplitSerializer struct{}

var _ Versioned[types.Split] = SplitSerializer{}

// Version returns CurrentVersion.
func (SplitSerializer) Version() int { return CurrentVersion }

// Serialize encodes split as [int32 length][UTF-8 subject].
func (SplitSerializer) Serialize(split types.Split) ([]byte, error) {
	if err := checkRepresentable(split); err != nil {
		return nil, err
	}

	return appendSplit(make([]byte, 0, 4+len(split.Subject)), split), nil
}

// Deserialize decodes a split written by Serialize.
func (SplitSerializer) Deserialize(version int, data []byte) (types.Split, error) {
	if err := checkVersion(version); err != nil {
		return types.Split{}, err
	}

	split, rest, err := readSplit(data)
	if err != nil {
		return types.Split{}, err
	}
	if len(rest) != 0 {
		return types.Split{}, fmt.Errorf("%w: %d trailing bytes", types.ErrCorruptData, len(rest))
	}

	return split, nil
}

// CheckpointSerializer encodes the enumerator checkpoint: an ordered split list.
type CheckpointSerializer struct{}

var _ Versioned[[]types.Split] = CheckpointSerializer{}

// Version returns CurrentVersion.
func (CheckpointSerializer) Version() int { return CurrentVersion }

// Serialize encodes splits as [int32 count] followed by each split, in order.
func (CheckpointSerializer) Serialize(splits []types.Split) ([]byte, error) {
	size := 4
	for _, s := range splits {
		if err := checkRepresentable(s); err != nil {
			return nil, err
		}
		size += 4 + len(s.Subject)
	}

	buf := binary.BigEndian.AppendUint32(make([]byte, 0, size), uint32(len(splits)))
	for _, s := range splits {
		buf = appendSplit(buf, s)
	}

	return buf, nil
}

// Deserialize decodes a checkpoint written by Serialize, preserving order.
func (CheckpointSerializer) Deserialize(version int, data []byte) ([]types.Split, error) {
	if err := checkVersion(version); err != nil {
		return nil, err
	}

	count, rest, err := readInt32(data)
	if err != nil {
		return nil, err
	}
	// Every split needs at least its length prefix.
	if count < 0 || int64(count)*4 > int64(len(rest)) {
		return nil, fmt.Errorf("%w: split count %d exceeds payload", types.ErrCorruptData, count)
	}

	splits := make([]types.Split, 0, count)
	for i := range int(count) {
		var s types.Split
		s, rest, err = readSplit(rest)
		if err != nil {
			return nil, fmt.Errorf("split %d: %w", i, err)
		}
		splits = append(splits, s)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", types.ErrCorruptData, len(rest))
	}

	return splits, nil
}

// WriteVersioned prefixes the serialized value with the serializer version and payload
// length: [int32 version][int32 length][payload].
func WriteVersioned[T any](s Versioned[T], v T) ([]byte, error) {
	payload, err := s.Serialize(v)
	if err != nil {
		return nil, err
	}
	if len(payload) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrUnrepresentable, len(payload))
	}

	buf := make([]byte, 0, 8+len(payload))
	buf = binary.BigEndian.AppendUint32(buf, uint32(s.Version()))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))

	return append(buf, payload...), nil
}

// ReadVersioned decodes data written by WriteVersioned.
func ReadVersioned[T any](s Versioned[T], data []byte) (T, error) {
	var zero T

	version, rest, err := readInt32(data)
	if err != nil {
		return zero, err
	}
	length, rest, err := readInt32(rest)
	if err != nil {
		return zero, err
	}
	if length < 0 || int(length) != len(rest) {
		return zero, fmt.Errorf("%w: payload length %d, have %d", types.ErrCorruptData, length, len(rest))
	}

	return s.Deserialize(int(version), rest)
}

func checkVersion(version int) error {
	if version != CurrentVersion {
		return fmt.Errorf("%w: %d (supported %d)", types.ErrVersionMismatch, version, CurrentVersion)
	}

	return nil
}

func checkRepresentable(split types.Split) error {
	if split.ID != split.Subject || len(split.Cursor) > 0 {
		return fmt.Errorf("%w %d: split %q", ErrUnrepresentable, CurrentVersion, split.ID)
	}
	if len(split.Subject) > math.MaxInt32 {
		return fmt.Errorf("%w %d: subject too long", ErrUnrepresentable, CurrentVersion)
	}
	// readSplit rejects invalid UTF-8, so it must never be written.
	if !utf8.ValidString(split.Subject) {
		return fmt.Errorf("%w %d: subject %q is not valid UTF-8", ErrUnrepresentable, CurrentVersion, split.Subject)
	}

	return nil
}

func appendSplit(buf []byte, split types.Split) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(split.Subject)))

	return append(buf, split.Subject...)
}

func readInt32(data []byte) (int32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("%w: need 4 bytes, have %d", types.ErrCorruptData, len(data))
	}

	return int32(binary.BigEndian.Uint32(data)), data[4:], nil
}

func readSplit(data []byte) (types.Split, []byte, error) {
	n, rest, err := readInt32(data)
	if err != nil {
		return types.Split{}, nil, err
	}
	if n < 0 || int(n) > len(rest) {
		return types.Split{}, nil, fmt.Errorf("%w: subject length %d, have %d", types.ErrCorruptData, n, len(rest))
	}

	raw := rest[:n]
	if !utf8.Valid(raw) {
		return types.Split{}, nil, fmt.Errorf("%w: subject is not valid UTF-8", types.ErrCorruptData)
	}

	return types.NewSubjectSplit(string(raw)), rest[n:], nil
}
