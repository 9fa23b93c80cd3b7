// Package priochan implements the two-class priority channel the
// subscription layer and the collector's broadcast fan-out depend on:
// a normal lane for high-volume events and a high-priority lane for
// heartbeats and termination signals that must never queue behind a
// backlog on the normal lane. Modeled on the semantics of the
// `polkadot_introspector_priority_channel` crate referenced by
// `original_source/essentials/src/chain_head_subscription.rs`, expressed
// with Go channels and generics instead of a bespoke crate.
package priochan

import "context"

// Chan is a bounded, two-lane channel. Send enqueues on the normal lane;
// SendPriority enqueues on the priority lane. Recv always prefers the
// priority lane when both have data ready.
type Chan[T any] struct {
	normal   chan T
	priority chan T
}

// New creates a two-lane channel with the given per-lane capacities.
func New[T any](normalCapacity, priorityCapacity int) *Chan[T] {
	return &Chan[T]{
		normal:   make(chan T, normalCapacity),
		priority: make(chan T, priorityCapacity),
	}
}

// Send enqueues v on the normal lane, blocking (applying backpressure) when
// full, until ctx is done.
func (c *Chan[T]) Send(ctx context.Context, v T) error {
	select {
	case c.normal <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendPriority enqueues v on the high-priority lane (heartbeats,
// termination). Bypasses normal-lane backpressure.
func (c *Chan[T]) SendPriority(ctx context.Context, v T) error {
	select {
	case c.priority <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv returns the next value, preferring the priority lane. ok is false
// when ctx is done before a value became available, or once the channel
// is closed and its priority lane is empty.
func (c *Chan[T]) Recv(ctx context.Context) (v T, ok bool) {
	// Non-blocking priority check first so a ready priority message is never
	// lost to a simultaneously-ready normal message in the select below.
	select {
	case v, ok = <-c.priority:
		return v, ok
	default:
	}

	select {
	case v, ok = <-c.priority:
		return v, ok
	case v, ok = <-c.normal:
		return v, ok
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Close closes both lanes. Receivers still get what is queued on the
// priority lane, then a closed, zero-value read; values still queued on the
// normal lane are not delivered. Callers must stop sending before calling
// Close.
func (c *Chan[T]) Close() {
	close(c.normal)
	close(c.priority)
}
