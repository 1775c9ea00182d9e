package types

// Message is the message handle retained between fetch and acknowledgment.
//
// Acknowledgment is performed by publishing to Reply, the per-message ack
// subject embedded by the broker, so no offset bookkeeping is needed and
// messages of one batch may be acknowledged in any order.
//
// jetstream.Msg satisfies this interface.
type Message interface {
	// Subject returns the subject the message was published on.
	Subject() string

	// Reply returns the acknowledgment target of the message.
	Reply() string

	// Data returns the raw payload bytes.
	Data() []byte
}
