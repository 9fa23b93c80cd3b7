// Package retry implements the RetryOptions contract used by the Request
// Executor for per-call retries and by the subscription layer for its
// initial connect. Built on cenkalti/backoff/v4, the same exponential
// backoff library the teacher module depends on directly.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Options mirrors the RetryOptions surface named in the request executor
// and subscription layer sections: a bounded retry count, a base delay, an
// exponential growth factor, and a ceiling on the per-attempt delay.
type Options struct {
	MaxRetries        int
	BaseDelay         time.Duration
	ExponentialFactor float64
	MaxDelay          time.Duration
}

// DefaultOptions matches the constants the original subscription/request
// layer falls back to absent explicit --retry-count/--retry-delay-ms flags.
func DefaultOptions() Options {
	return Options{
		MaxRetries:        3,
		BaseDelay:         100 * time.Millisecond,
		ExponentialFactor: 2.0,
		MaxDelay:          5 * time.Second,
	}
}

// Deadline is the overall deadline RPC calls inherit from RetryOptions:
// max_retries × max_delay, per the concurrency & resource model.
func (o Options) Deadline() time.Duration {
	return time.Duration(o.MaxRetries) * o.MaxDelay
}

func (o Options) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.BaseDelay
	b.Multiplier = o.ExponentialFactor
	b.MaxInterval = o.MaxDelay
	b.MaxElapsedTime = 0 // bounded by MaxRetries below, not wall-clock elapsed
	return backoff.WithMaxRetries(b, uint64(o.MaxRetries))
}

// Do runs fn, retrying per Options until it succeeds, the retry budget is
// exhausted, or ctx is canceled. The last error is returned on exhaustion.
func Do(ctx context.Context, opts Options, fn func() error) error {
	return backoff.Retry(fn, backoff.WithContext(opts.backOff(), ctx))
}
