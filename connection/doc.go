// Package connection manages the NATS connections used by split readers.
//
// A Factory produces live connections; a Pool keeps one lazily created
// Context per split id, replaces it when the connection reports CLOSED or
// DISCONNECTED, and releases it exactly once when the split's fetcher closes.
package connection
