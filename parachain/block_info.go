// Package parachain implements the per-parachain state machine
// (ParachainBlockInfo) and the Tracker that drives it from collector
// update events, the terminal progress display, and shutdown summaries.
//
// Grounded on
// original_source/parachain-tracer/src/parachain_block_info.rs.
package parachain

import (
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/chainwatch/paratracer/candidatehash"
)

// State is the parachain block pipeline's current phase.
type State int

const (
	Idle State = iota
	Backed
	PendingAvailability
	Included
)

func (s State) String() string {
	switch s {
	case Backed:
		return "backed"
	case PendingAvailability:
		return "pending_availability"
	case Included:
		return "included"
	default:
		return "idle"
	}
}

// BlockInfo is the tracking state for a single parachain: which candidate
// is currently in flight, its pipeline state, and the availability/
// bitfield counters the collector refreshes each relay parent.
type BlockInfo struct {
	Candidate             *candidatehash.CandidateDescriptor
	Commitments            *candidatehash.CandidateCommitments
	CandidateHash          *types.Hash
	state                  State
	BitfieldCount          uint32
	MaxAvailabilityBits    uint32
	CurrentAvailabilityBits uint32
	AssignedCore           *uint32
	CoreOccupied           bool
}

// SetCandidate records a newly backed candidate and computes its
// candidate hash per candidatehash.Hash. Returns the hash error, if any,
// from the underlying SCALE encode (never expected in practice).
func (b *BlockInfo) SetCandidate(descriptor candidatehash.CandidateDescriptor, commitments candidatehash.CandidateCommitments) error {
	hash, err := candidatehash.Hash(descriptor, commitments)
	if err != nil {
		return err
	}
	b.Candidate = &descriptor
	b.Commitments = &commitments
	b.CandidateHash = &hash
	return nil
}

func (b *BlockInfo) SetIdle()    { b.state = Idle }
func (b *BlockInfo) SetBacked()  { b.state = Backed }
func (b *BlockInfo) SetPending() { b.state = PendingAvailability }
func (b *BlockInfo) SetIncluded() { b.state = Included }

func (b *BlockInfo) State() State { return b.state }

func (b *BlockInfo) IsIdle() bool    { return b.state == Idle }
func (b *BlockInfo) IsBacked() bool  { return b.state == Backed }
func (b *BlockInfo) IsPending() bool { return b.state == PendingAvailability }
func (b *BlockInfo) IsIncluded() bool { return b.state == Included }

// MaybeReset returns to Idle and clears the candidate only if the current
// state is Included; Backed/PendingAvailability survive across head
// updates unchanged (scenario S5).
func (b *BlockInfo) MaybeReset() {
	if b.IsIncluded() {
		b.state = Idle
		b.Candidate = nil
		b.Commitments = nil
		b.CandidateHash = nil
	}
}

// IsDataAvailable reports whether the observed availability bitfield has
// crossed the two-thirds-majority threshold (scenario S4): strictly more
// than two thirds of the bits, so 133 of 200 is not available and 134 is.
func (b *BlockInfo) IsDataAvailable() bool {
	return uint64(b.CurrentAvailabilityBits)*3 > uint64(b.MaxAvailabilityBits)*2
}

// IsBitfieldPropagationLow reports whether bitfield participation is
// suspiciously low for a non-idle candidate.
func (b *BlockInfo) IsBitfieldPropagationLow() bool {
	return b.MaxAvailabilityBits > 0 && !b.IsIdle() && b.BitfieldCount <= (b.MaxAvailabilityBits/3)*2
}
