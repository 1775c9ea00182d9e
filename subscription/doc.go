// Package subscription implements the single-split reader over a JetStream
// durable pull consumer.
//
// A SplitReader is bound to at most one split for its lifetime. It opens a
// durable consumer filtered on the split's subject, pulls bounded batches, and
// acknowledges messages only when told that the covering checkpoint completed,
// by publishing the ack body to each message's reply subject.
package subscription
