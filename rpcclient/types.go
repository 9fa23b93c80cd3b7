// Package rpcclient implements the Request Executor: a pooled,
// retrying, typed RPC client over a relay/parachain node's JSON-RPC
// websocket endpoint, plus the transport the subscription layer uses to
// follow the chain head.
//
// Grounded on original_source/src/core.rs (connection pooling keyed by
// URL, retry-with-delay on connect) and original_source/src/core/api/
// mod.rs (the typed method surface the collector and tracker call
// through).
package rpcclient

import (
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/chainwatch/paratracer/candidatehash"
)

// BlockHeader is the subset of a relay chain header the collector and
// tracker need.
type BlockHeader struct {
	Hash          types.Hash
	ParentHash    types.Hash
	Number        uint32
	StateRoot     types.Hash
	ExtrinsicsRoot types.Hash
}

// HostConfiguration mirrors the parachains configuration module's active
// configuration. The tracer fetches it once at startup as an init check;
// the values are not printed.
type HostConfiguration struct {
	MaxValidators         *uint32
	MaxValidatorsPerCore  *uint32
	NeededApprovals       uint32
	NoShowSlots           uint32
	NDelayTranches        uint32
}

// BackingGroup is a validator-index group assigned to back a core.
type BackingGroup struct {
	GroupIndex uint32
	Validators []uint32
}

// OccupiedCore describes an availability core currently holding a
// candidate awaiting inclusion.
type OccupiedCore struct {
	CoreIndex            uint32
	ParaID               uint32
	CandidateHash         types.Hash
	AvailabilityBitfield  []byte
	ValidatorCount        uint32
}

// BackedCandidate is a candidate that has collected enough backing votes
// to enter the availability phase.
type BackedCandidate struct {
	ParaID      uint32
	Descriptor  candidatehash.CandidateDescriptor
	Commitments candidatehash.CandidateCommitments
}

// ParainherentData is the decoded inherent extrinsic: the backed
// candidates, occupied cores, and the signed bitfields submitted this
// relay block.
type ParainherentData struct {
	BackedCandidates []BackedCandidate
	OccupiedCores    []OccupiedCore
	BitfieldCount    uint32
}
