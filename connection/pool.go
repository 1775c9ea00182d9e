package connection

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/splitsource/internal/logging"
	"github.com/arloliu/splitsource/internal/metrics"
	"github.com/arloliu/splitsource/types"
)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(logger types.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logging.OrNop(logger)
	}
}

// WithMetrics sets the pool metrics collector.
func WithMetrics(mc types.MetricsCollector) PoolOption {
	return func(p *Pool) {
		p.metrics = metrics.OrNop(mc)
	}
}

// poolEntry guards the context of a single split.
type poolEntry struct {
	mu       sync.Mutex
	ctx      *Context
	released bool
}

// Pool is a keyed store of live connections, one per split id.
//
// Entries are created lazily by Get and locked individually: resolving the
// connection of one split never blocks another split.
type Pool struct {
	factory Factory
	entries *xsync.Map[string, *poolEntry]
	closed  atomic.Bool
	logger  types.Logger
	metrics types.MetricsCollector
}

// NewPool creates an empty pool backed by factory.
//
// Parameters:
//   - factory: Connection factory used on first use and on reconnection
//   - opts: Optional logger and metrics
//
// Returns:
//   - *Pool: Empty pool
//
// Example:
//
//	pool := connection.NewPool(connection.NewNATSFactory(url), connection.WithLogger(logger))
//	defer pool.Close()
//	cc, err := pool.Get(ctx, "orders.eu")
func NewPool(factory Factory, opts ...PoolOption) *Pool {
	p := &Pool{
		factory: factory,
		entries: xsync.NewMap[string, *poolEntry](),
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Get returns the live context for splitID, creating it on first use or
// replacing it when its connection reports CLOSED or DISCONNECTED.
//
// Returns:
//   - *Context: Live connection context
//   - error: types.ErrClosed after Close, or a wrapped types.ErrConnection
func (p *Pool) Get(ctx context.Context, splitID string) (*Context, error) {
	if p.factory == nil {
		return nil, types.ErrConnectionFactoryRequired
	}

	for {
		if p.closed.Load() {
			return nil, types.ErrClosed
		}

		entry, _ := p.entries.LoadOrStore(splitID, &poolEntry{})

		entry.mu.Lock()
		if entry.released {
			// Raced with Release; retry against a fresh entry.
			entry.mu.Unlock()
			continue
		}

		if !entry.ctx.stale() {
			cc := entry.ctx
			entry.mu.Unlock()

			return cc, nil
		}

		reconnect := entry.ctx != nil
		if reconnect {
			p.logger.Warn("pooled connection is stale, reconnecting", "split", splitID, "status", entry.ctx.Conn.Status().String())
			entry.ctx.close()
			entry.ctx = nil
		}

		cc, err := p.factory.ConnectContext(ctx)
		if err != nil {
			entry.mu.Unlock()
			return nil, fmt.Errorf("%w: split %s: %w", types.ErrConnection, splitID, err)
		}
		entry.ctx = cc
		entry.mu.Unlock()

		p.metrics.RecordConnectionCreated(reconnect)
		p.logger.Debug("pooled connection created", "split", splitID, "reconnect", reconnect)

		return cc, nil
	}
}

// Release removes and closes the context for splitID.
//
// Returns:
//   - bool: true only for the call that actually released the entry
func (p *Pool) Release(splitID string) bool {
	entry, ok := p.entries.LoadAndDelete(splitID)
	if !ok {
		return false
	}

	entry.mu.Lock()
	entry.released = true
	entry.ctx.close()
	entry.ctx = nil
	entry.mu.Unlock()

	p.metrics.RecordConnectionReleased()
	p.logger.Debug("pooled connection released", "split", splitID)

	return true
}

// Invalidate closes cc if it is still the pooled context of splitID, so the
// next Get reconnects. It reports whether cc was dropped.
func (p *Pool) Invalidate(splitID string, cc *Context) bool {
	entry, ok := p.entries.Load(splitID)
	if !ok || cc == nil {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.released || entry.ctx != cc {
		return false
	}
	entry.ctx.close()
	entry.ctx = nil
	p.logger.Debug("pooled connection invalidated", "split", splitID)

	return true
}

// Len returns the number of pooled entries.
func (p *Pool) Len() int {
	return p.entries.Size()
}

// Close releases every entry. Get fails with types.ErrClosed afterwards.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	var ids []string
	p.entries.Range(func(id string, _ *poolEntry) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		p.Release(id)
	}
}
