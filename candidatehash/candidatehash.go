// Package candidatehash computes the parachain candidate hash identity
// used to key the records store and to identify a candidate across
// backing, availability and inclusion.
//
// Grounded on original_source/parachain-tracer/src/parachain_block_info.rs
// (`set_candidate`, which computes `BlakeTwo256::hash_of(&(&descriptor,
// commitments_hash))`) and spec.md's definition: BLAKE2-256 over
// `descriptor ‖ BLAKE2-256(commitments)`, both sub-structures canonically
// SCALE-encoded.
package candidatehash

import (
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"golang.org/x/crypto/blake2b"
)

// CandidateDescriptor mirrors the relay chain's CandidateDescriptor: the
// fields that anchor a candidate to a parachain, a relay parent, and a
// collator signature. Field order matches the SCALE-encoded wire layout.
type CandidateDescriptor struct {
	ParaID                    types.U32
	RelayParent               types.Hash
	Collator                  [32]byte
	PersistedValidationDataHash types.Hash
	PovHash                   types.Hash
	ErasureRoot               types.Hash
	Signature                 [64]byte
	ParaHead                  types.Hash
	ValidationCodeHash        types.Hash
}

// CandidateCommitments mirrors the relay chain's CandidateCommitments: the
// output produced by executing a candidate.
type CandidateCommitments struct {
	UpwardMessages          [][]byte
	HorizontalMessages      []OutboundHrmpMessage
	NewValidationCode       []byte
	HeadData                []byte
	ProcessedDownwardMessages types.U32
	HrmpWatermark            types.U32
}

// OutboundHrmpMessage mirrors the relay chain's HRMP outbound message
// shape referenced from CandidateCommitments.HorizontalMessages.
type OutboundHrmpMessage struct {
	Recipient types.U32
	Data      []byte
}

// Hash computes BLAKE2-256(descriptor ‖ BLAKE2-256(commitments)) using the
// network's canonical SCALE encoding for both sub-structures. This value
// must reproduce the relay chain's own candidate hash bit-exactly.
func Hash(descriptor CandidateDescriptor, commitments CandidateCommitments) (types.Hash, error) {
	encodedCommitments, err := types.EncodeToBytes(commitments)
	if err != nil {
		return types.Hash{}, err
	}
	commitmentsHash := blake2b.Sum256(encodedCommitments)

	encodedDescriptor, err := types.EncodeToBytes(descriptor)
	if err != nil {
		return types.Hash{}, err
	}

	buf := make([]byte, 0, len(encodedDescriptor)+len(commitmentsHash))
	buf = append(buf, encodedDescriptor...)
	buf = append(buf, commitmentsHash[:]...)

	return types.NewHash(hashBytes(buf)), nil
}

func hashBytes(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}
