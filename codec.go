package splitsource

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var defaultJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// PayloadDeserializer maps raw message bytes to the pipeline's record type.
//
// The source treats payloads as opaque; only the deserializer knows their format.
type PayloadDeserializer[T any] interface {
	// Deserialize decodes one message payload.
	//
	// Parameters:
	//   - subject: Subject the message was published on
	//   - data: Raw payload bytes (must not be retained)
	//
	// Returns:
	//   - T: Decoded record
	//   - error: Decode error, fatal to the poll that returned the message
	Deserialize(subject string, data []byte) (T, error)
}

// StringDeserializer decodes payloads as UTF-8 strings.
type StringDeserializer struct{}

// Deserialize returns data as a string.
func (StringDeserializer) Deserialize(_ string, data []byte) (string, error) {
	return string(data), nil
}

// BytesDeserializer returns a copy of the raw payload.
type BytesDeserializer struct{}

// Deserialize returns a copy of data.
func (BytesDeserializer) Deserialize(_ string, data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)

	return out, nil
}

// JSONDeserializer decodes JSON payloads into T using json-iterator's standard
// library compatible configuration.
type JSONDeserializer[T any] struct{}

// Deserialize unmarshals data into a new T.
func (JSONDeserializer[T]) Deserialize(subject string, data []byte) (T, error) {
	var v T
	if err := defaultJSON.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode JSON payload from %s: %w", subject, err)
	}

	return v, nil
}

// DeserializerFunc adapts a function to PayloadDeserializer.
type DeserializerFunc[T any] func(subject string, data []byte) (T, error)

// Deserialize calls f.
func (f DeserializerFunc[T]) Deserialize(subject string, data []byte) (T, error) {
	return f(subject, data)
}
