package collector

import (
	"sync"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/chainwatch/paratracer/candidatehash"
	"github.com/chainwatch/paratracer/records"
)

// CandidateInfo is a stored backed candidate keyed by its relay parent: the
// original descriptor/commitments plus the precomputed candidate hash.
type CandidateInfo struct {
	Descriptor  candidatehash.CandidateDescriptor
	Commitments candidatehash.CandidateCommitments
	Hash        types.Hash
}

// CoreInfo is the latest availability-core snapshot recorded for one
// parachain: the counters spec.md §4.4 step 4 derives from the occupied
// core list and the inherent's signed-bitfield count.
type CoreInfo struct {
	Occupied                bool
	MaxAvailabilityBits     uint32
	CurrentAvailabilityBits uint32
	BitfieldCount           uint32
}

// StorageAPI is the read surface the tracker pulls from, grounded on
// `CollectorStorageApi` in original_source/parachain-tracer/src/main.rs
// (passed into every spawned tracker alongside the update channel).
type StorageAPI interface {
	CandidateAt(paraID uint32, relayParent types.Hash) (CandidateInfo, bool)
	CoreInfo(paraID uint32) (CoreInfo, bool)
	Len() int
}

// storage is the collector's owned Records Store plus the small
// current-state maps (seen heads, core snapshots) that sit alongside it.
// All access is mutex-guarded since the tracker's StorageAPI reads happen
// from different goroutines than the collector's own writes.
type storage struct {
	mu         sync.Mutex
	candidates *records.PrefixedStore[types.Hash, uint32]
	cores      map[uint32]CoreInfo
	seenHeads  map[types.Hash]struct{}
}

func newStorage(maxBlocks int) *storage {
	return &storage{
		candidates: records.NewPrefixedStore[types.Hash, uint32](records.Config{MaxBlocks: maxBlocks}),
		cores:      make(map[uint32]CoreInfo),
		seenHeads:  make(map[types.Hash]struct{}),
	}
}

func (s *storage) recordCandidate(paraID uint32, relayParent types.Hash, blockNumber uint32, info CandidateInfo) error {
	raw, err := types.EncodeToBytes(info)
	if err != nil {
		return err
	}
	entry := records.NewOnchain(records.NewTime(blockNumber), raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candidates.InsertPrefix(paraID, relayParent, entry)
}

func (s *storage) CandidateAt(paraID uint32, relayParent types.Hash) (CandidateInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.candidates.GetPrefix(paraID, relayParent)
	if !ok {
		return CandidateInfo{}, false
	}
	var info CandidateInfo
	if err := types.DecodeFromBytes(entry.Data, &info); err != nil {
		return CandidateInfo{}, false
	}
	return info, true
}

func (s *storage) setCoreInfo(paraID uint32, info CoreInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cores[paraID] = info
}

func (s *storage) CoreInfo(paraID uint32) (CoreInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.cores[paraID]
	return info, ok
}

func (s *storage) seenHead(hash types.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seenHeads[hash]
	return ok
}

func (s *storage) markHeadSeen(hash types.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seenHeads[hash] = struct{}{}
}

// Len reports how many candidates are currently retained, the figure the
// health endpoint reports as candidates_stored.
func (s *storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candidates.Len()
}
