// Package telemetry decodes the Polkadot/Substrate telemetry feed's wire
// format: a flat JSON array of alternating action codes and payloads,
// `[action0, payload0, action1, payload1, ...]`. The decoder is stateless;
// it has no notion of a connection, only of turning one batch of bytes
// into a sequence of tagged messages.
//
// Grounded on
// original_source/introspector/src/core/telemetry_feed.rs (`TelemetryFeed`
// and its `from_bytes`/`decode`), including the action-code table and its
// literal JSON test fixtures.
package telemetry

import "github.com/centrifuge/go-substrate-rpc-client/v4/types"

// Message is implemented by every decoded feed variant, including
// UnknownValue for action codes the decoder does not recognize.
type Message interface {
	isMessage()
}

type Version struct {
	Value int
}

type BestBlock struct {
	BlockNumber  uint64
	Timestamp    uint64
	AvgBlockTime *uint64
}

type BestFinalized struct {
	BlockNumber uint64
	BlockHash   types.Hash
}

type RemovedNode struct {
	NodeID uint64
}

type LocatedNode struct {
	NodeID uint64
	Lat    float32
	Long   float32
	City   string
}

// Block is the concise block reference embedded in ImportedBlock.
type Block struct {
	Hash   types.Hash
	Height uint64
}

// BlockDetails is the verbose block payload embedded in ImportedBlock.
type BlockDetails struct {
	Block            Block
	BlockTime        uint64
	BlockTimestamp   uint64
	PropagationTime  *uint64
}

type ImportedBlock struct {
	NodeID       uint64
	BlockDetails BlockDetails
}

type FinalizedBlock struct {
	NodeID      uint64
	BlockNumber uint64
	BlockHash   types.Hash
}

type TimeSync struct {
	Time uint64
}

type AddedChain struct {
	Name        string
	GenesisHash types.Hash
	NodeCount   uint64
}

type RemovedChain struct {
	GenesisHash types.Hash
}

type SubscribedTo struct {
	GenesisHash types.Hash
}

type UnsubscribedFrom struct {
	GenesisHash types.Hash
}

type Pong struct {
	Msg string
}

type StaleNode struct {
	NodeID uint64
}

// NodeDetails is the static identity portion of AddedNode's composite
// payload: name/implementation/version are always present, validator and
// network ID are only sent for validator nodes that opted in.
type NodeDetails struct {
	Name           string
	Implementation string
	Version        string
	Validator      *string
	NetworkID      *string
}

// NodeStats is the payload shape shared by AddedNode and NodeStatsUpdate.
type NodeStats struct {
	Peers   uint64
	TxCount uint64
}

// NodeIO is AddedNode's state-cache-size history at the time it joined.
type NodeIO struct {
	StateCacheSize []float64
}

// NodeHardware is the payload shape shared by AddedNode and Hardware.
type NodeHardware struct {
	Upload         []float64
	Download       []float64
	StateCacheSize []float64
}

// NodeLocation is AddedNode's optional geolocation, the same triple
// LocatedNode reports later if the feed resolves it lazily.
type NodeLocation struct {
	Lat  float32
	Long float32
	City string
}

// AddedNode is action code 3's composite payload: node identity, stats,
// I/O and hardware snapshots, its current best block, and two optional
// trailing fields (geolocation, startup timestamp).
type AddedNode struct {
	NodeID       uint64
	Details      NodeDetails
	Stats        NodeStats
	IO           NodeIO
	Hardware     NodeHardware
	BlockDetails BlockDetails
	Location     *NodeLocation
	StartupTime  *uint64
}

// NodeStatsUpdate is action code 8's payload.
type NodeStatsUpdate struct {
	NodeID uint64
	Stats  NodeStats
}

// Hardware is action code 9's payload.
type Hardware struct {
	NodeID   uint64
	Hardware NodeHardware
}

// UnknownValue is returned for any action code this decoder does not
// recognize; Value carries the raw JSON text of the payload unparsed.
type UnknownValue struct {
	Action uint8
	Value  string
}

func (Version) isMessage()          {}
func (BestBlock) isMessage()        {}
func (BestFinalized) isMessage()    {}
func (RemovedNode) isMessage()      {}
func (LocatedNode) isMessage()      {}
func (ImportedBlock) isMessage()    {}
func (FinalizedBlock) isMessage()   {}
func (TimeSync) isMessage()         {}
func (AddedChain) isMessage()       {}
func (RemovedChain) isMessage()     {}
func (SubscribedTo) isMessage()     {}
func (UnsubscribedFrom) isMessage() {}
func (Pong) isMessage()             {}
func (StaleNode) isMessage()        {}
func (AddedNode) isMessage()        {}
func (NodeStatsUpdate) isMessage()  {}
func (Hardware) isMessage()         {}
func (UnknownValue) isMessage()     {}
