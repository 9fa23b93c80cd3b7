package collector

import "github.com/centrifuge/go-substrate-rpc-client/v4/types"

// UpdateEvent is the tagged union the collector publishes to per-parachain
// and broadcast subscribers: a new relay head affecting one parachain, a
// session change, or shutdown.
type UpdateEvent interface{ isUpdateEvent() }

// NewHead reports a new best relay head affecting ParaID. RelayParentHashes
// carries more than one hash, newest first, only when two best-heads at the
// same RelayParentNumber were observed in succession (a relay-chain fork),
// so the tracker can replay state for each fork independently.
type NewHead struct {
	ParaID            uint32
	RelayParentNumber uint32
	RelayParentHashes []types.Hash
}

func (NewHead) isUpdateEvent() {}

// NewSession reports a session index change detected on the relay chain.
type NewSession struct {
	Index uint32
}

func (NewSession) isUpdateEvent() {}

// Termination tells every subscriber the collector is shutting down.
type Termination struct{}

func (Termination) isUpdateEvent() {}
