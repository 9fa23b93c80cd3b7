// Package chainhead implements the subscription layer: one long-lived
// follow-chain-head subscription per (consumer, endpoint) pair, for every
// consumer registered before Run starts, plus a fixed heartbeat so
// consumers can detect a silent connection.
//
// Grounded on original_source/essentials/src/chain_head_subscription.rs.
// The original spawns a per-(consumer,url) tokio task reading a subxt
// `FollowEvent` stream and forwards a small `ChainHeadEvent` enum over a
// priority channel; this package keeps that exact per-node state machine
// (Initialized drains + unpins, NewBlock is ignored, BestBlockChanged and
// Finalized are forwarded, Stop ends the task, a 200ms ticker injects a
// Heartbeat) but drives shutdown from context cancellation instead of a
// broadcast channel, the idiomatic Go equivalent.
package chainhead

import "github.com/centrifuge/go-substrate-rpc-client/v4/types"

// EventKind identifies the three ChainHeadEvent variants consumers observe.
type EventKind int

const (
	NewBestHead EventKind = iota
	NewFinalizedHead
	Heartbeat
)

func (k EventKind) String() string {
	switch k {
	case NewBestHead:
		return "new_best_head"
	case NewFinalizedHead:
		return "new_finalized_head"
	case Heartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Event is the value forwarded to every consumer. Hash is the zero value
// for Heartbeat events.
type Event struct {
	Kind EventKind
	Hash types.Hash
}

// FollowEventKind mirrors subxt's FollowEvent discriminants.
type FollowEventKind int

const (
	FollowInitialized FollowEventKind = iota
	FollowNewBlock
	FollowBestBlockChanged
	FollowFinalized
	FollowStop
)

// FollowEvent is the raw chain-head-follow protocol message a Subscription
// yields. Only the fields relevant to the active Kind are populated.
type FollowEvent struct {
	Kind FollowEventKind

	// Initialized
	FinalizedBlockHash types.Hash

	// BestBlockChanged
	BestBlockHash types.Hash

	// Finalized
	FinalizedBlockHashes []types.Hash
	PrunedBlockHashes    []types.Hash
}
