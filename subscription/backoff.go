package subscription

import (
	"context"
	rand "math/rand/v2"
	"time"
)

// retryGrowth is the factor the upper jitter bound grows by per attempt.
const retryGrowth = 2.0

// retryPolicy spaces consumer creation attempts with decorrelated jitter:
// each delay is drawn from [base, prev*growth) and capped at maxDelay.
type retryPolicy struct {
	base     time.Duration
	maxDelay time.Duration
	rng      *rand.Rand // nil uses the package PRNG
	prev     time.Duration
}

// newRetryPolicy builds the policy of cfg. A non-zero RetrySeed makes the
// delays reproducible.
func newRetryPolicy(cfg ReaderConfig) *retryPolicy {
	p := &retryPolicy{base: cfg.RetryBackoff, maxDelay: cfg.MaxRetryBackoff}
	if p.base <= 0 {
		p.base = DefaultRetryBackoff
	}
	if cfg.RetrySeed != 0 {
		s := uint64(cfg.RetrySeed)
		p.rng = rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15)) //nolint:gosec // jitter only
	}

	return p
}

// next returns the delay before the following attempt.
func (p *retryPolicy) next() time.Duration {
	d := p.base
	if p.prev > 0 {
		span := time.Duration(float64(p.prev)*retryGrowth) - p.base
		if span <= 0 {
			span = p.base
		}
		d = p.base + time.Duration(p.int64n(int64(span)))
	}
	if p.maxDelay > 0 && d > p.maxDelay {
		d = p.maxDelay
	}
	p.prev = d

	return d
}

func (p *retryPolicy) int64n(n int64) int64 {
	if p.rng != nil {
		return p.rng.Int64N(n)
	}

	return rand.Int64N(n) //nolint:gosec // jitter only
}

// sleepCtx sleeps for d. It returns ctx.Err() if ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
