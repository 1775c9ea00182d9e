package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/splitsource/internal/natsutil"
	"github.com/arloliu/splitsource/types"
)

// Context is a live connection together with its JetStream namespace.
type Context struct {
	Conn *nats.Conn
	JS   jetstream.JetStream
}

// NewContext wraps an existing connection.
//
// Parameters:
//   - nc: Connected NATS client
//
// Returns:
//   - *Context: Connection plus JetStream namespace
//   - error: types.ErrNATSConnectionRequired for nil, or JetStream init error
func NewContext(nc *nats.Conn) (*Context, error) {
	if nc == nil {
		return nil, types.ErrNATSConnectionRequired
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &Context{Conn: nc, JS: js}, nil
}

// stale reports whether the context must be replaced before use.
func (c *Context) stale() bool {
	if c == nil || c.Conn == nil {
		return true
	}

	return natsutil.IsStale(c.Conn)
}

// close closes the underlying connection if it is still open.
func (c *Context) close() {
	if c == nil || c.Conn == nil || c.Conn.IsClosed() {
		return
	}
	c.Conn.Close()
}

// Factory produces live broker connections.
//
// Implementations are called lazily on first use of a split and again
// whenever the pooled connection goes stale.
type Factory interface {
	// Connect opens a new connection.
	Connect(ctx context.Context) (*nats.Conn, error)

	// ConnectContext opens a new connection and its JetStream namespace.
	ConnectContext(ctx context.Context) (*Context, error)
}

// NATSFactory connects to a fixed server URL with a fixed option set.
type NATSFactory struct {
	url  string
	opts []nats.Option
}

var _ Factory = (*NATSFactory)(nil)

// NewNATSFactory creates a factory for the given server URL.
//
// Parameters:
//   - url: NATS server URL (comma separated for a cluster)
//   - opts: Options passed to nats.Connect on every connect
//
// Returns:
//   - *NATSFactory: Factory ready for use
//
// Example:
//
//	factory := connection.NewNATSFactory(nats.DefaultURL, nats.Name("orders-source"))
//	pool := connection.NewPool(factory)
func NewNATSFactory(url string, opts ...nats.Option) *NATSFactory {
	return &NATSFactory{url: url, opts: opts}
}

// Connect opens a new connection. ctx is checked before dialing; the dial
// itself is bounded by the nats.Timeout option.
func (f *NATSFactory) Connect(ctx context.Context) (*nats.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.url == "" {
		return nil, errors.New("NATS server URL is required")
	}

	nc, err := nats.Connect(f.url, f.opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConnection, err)
	}

	return nc, nil
}

// ConnectContext opens a new connection and its JetStream namespace.
func (f *NATSFactory) ConnectContext(ctx context.Context) (*Context, error) {
	nc, err := f.Connect(ctx)
	if err != nil {
		return nil, err
	}

	c, err := NewContext(nc)
	if err != nil {
		nc.Close()
		return nil, err
	}

	return c, nil
}
