package telemetry

import (
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var zeroHash = types.Hash{}

func avg(v uint64) *uint64 { return &v }

// TestDecodeVersionBestBlockBestFinalized is scenario S1.
func TestDecodeVersionBestBlockBestFinalized(t *testing.T) {
	msg := `[0,32,1,[14783932,1679657352067,5998],2,[14783934,"0x0000000000000000000000000000000000000000000000000000000000000000"]]`

	got, err := Decode([]byte(msg))
	require.NoError(t, err)

	want := []Message{
		Version{Value: 32},
		BestBlock{BlockNumber: 14783932, Timestamp: 1679657352067, AvgBlockTime: avg(5998)},
		BestFinalized{BlockNumber: 14783934, BlockHash: zeroHash},
	}
	assert.Equal(t, want, got)
}

func TestDecodeRemovedNodeLocatedNode(t *testing.T) {
	msg := `[4,42,5,[1560,35.6893,139.6899,"Tokyo"]]`

	got, err := Decode([]byte(msg))
	require.NoError(t, err)

	want := []Message{
		RemovedNode{NodeID: 42},
		LocatedNode{NodeID: 1560, Lat: 35.6893, Long: 139.6899, City: "Tokyo"},
	}
	assert.Equal(t, want, got)
}

func TestDecodeImportedBlockFinalizedBlock(t *testing.T) {
	msg := `[6,[297,[11959,"0x0000000000000000000000000000000000000000000000000000000000000000",6073,1679669286310,233]],7,[92,12085,"0x0000000000000000000000000000000000000000000000000000000000000000"]]`

	got, err := Decode([]byte(msg))
	require.NoError(t, err)

	want := []Message{
		ImportedBlock{
			NodeID: 297,
			BlockDetails: BlockDetails{
				Block:           Block{Hash: zeroHash, Height: 11959},
				BlockTime:       6073,
				BlockTimestamp:  1679669286310,
				PropagationTime: avg(233),
			},
		},
		FinalizedBlock{NodeID: 92, BlockNumber: 12085, BlockHash: zeroHash},
	}
	assert.Equal(t, want, got)
}

func str(v string) *string { return &v }

func TestDecodeAddedNode(t *testing.T) {
	msg := `[3,[84,["node-1","substrate-node","1.0.0","Alice","network-1"],[25,140],[[512.0]],[[1.0,2.0],[3.0,4.0],[5.0]],[11959,"0x0000000000000000000000000000000000000000000000000000000000000000",6073,1679669286310,233],[35.6893,139.6899,"Tokyo"],1679669000000]]`

	got, err := Decode([]byte(msg))
	require.NoError(t, err)

	want := []Message{
		AddedNode{
			NodeID: 84,
			Details: NodeDetails{
				Name:           "node-1",
				Implementation: "substrate-node",
				Version:        "1.0.0",
				Validator:      str("Alice"),
				NetworkID:      str("network-1"),
			},
			Stats:    NodeStats{Peers: 25, TxCount: 140},
			IO:       NodeIO{StateCacheSize: []float64{512.0}},
			Hardware: NodeHardware{Upload: []float64{1.0, 2.0}, Download: []float64{3.0, 4.0}, StateCacheSize: []float64{5.0}},
			BlockDetails: BlockDetails{
				Block:           Block{Hash: zeroHash, Height: 11959},
				BlockTime:       6073,
				BlockTimestamp:  1679669286310,
				PropagationTime: avg(233),
			},
			Location:    &NodeLocation{Lat: 35.6893, Long: 139.6899, City: "Tokyo"},
			StartupTime: avg(1679669000000),
		},
	}
	assert.Equal(t, want, got)
}

func TestDecodeAddedNodeWithoutOptionalFields(t *testing.T) {
	msg := `[3,[84,["node-1","substrate-node","1.0.0"],[25,140],[[512.0]],[[1.0,2.0],[3.0,4.0],[5.0]],[11959,"0x0000000000000000000000000000000000000000000000000000000000000000",6073,1679669286310],null,null]]`

	got, err := Decode([]byte(msg))
	require.NoError(t, err)

	want := []Message{
		AddedNode{
			NodeID: 84,
			Details: NodeDetails{
				Name:           "node-1",
				Implementation: "substrate-node",
				Version:        "1.0.0",
			},
			Stats:    NodeStats{Peers: 25, TxCount: 140},
			IO:       NodeIO{StateCacheSize: []float64{512.0}},
			Hardware: NodeHardware{Upload: []float64{1.0, 2.0}, Download: []float64{3.0, 4.0}, StateCacheSize: []float64{5.0}},
			BlockDetails: BlockDetails{
				Block:          Block{Hash: zeroHash, Height: 11959},
				BlockTime:      6073,
				BlockTimestamp: 1679669286310,
			},
		},
	}
	assert.Equal(t, want, got)
}

func TestDecodeNodeStatsUpdateHardware(t *testing.T) {
	msg := `[8,[84,[25,140]],9,[84,[[1.0,2.0],[3.0,4.0],[5.0,6.0]]]]`

	got, err := Decode([]byte(msg))
	require.NoError(t, err)

	want := []Message{
		NodeStatsUpdate{NodeID: 84, Stats: NodeStats{Peers: 25, TxCount: 140}},
		Hardware{NodeID: 84, Hardware: NodeHardware{Upload: []float64{1.0, 2.0}, Download: []float64{3.0, 4.0}, StateCacheSize: []float64{5.0, 6.0}}},
	}
	assert.Equal(t, want, got)
}

func TestDecodeTimeSync(t *testing.T) {
	got, err := Decode([]byte(`[10,1679670187855]`))
	require.NoError(t, err)
	assert.Equal(t, []Message{TimeSync{Time: 1679670187855}}, got)
}

func TestDecodeAddedChainRemovedChain(t *testing.T) {
	msg := `[11,["Tick 558","0x0000000000000000000000000000000000000000000000000000000000000000",2],12,"0x0000000000000000000000000000000000000000000000000000000000000000"]`

	got, err := Decode([]byte(msg))
	require.NoError(t, err)

	want := []Message{
		AddedChain{Name: "Tick 558", GenesisHash: zeroHash, NodeCount: 2},
		RemovedChain{GenesisHash: zeroHash},
	}
	assert.Equal(t, want, got)
}

func TestDecodeSubscribedToUnsubscribedFrom(t *testing.T) {
	msg := `[13,"0x0000000000000000000000000000000000000000000000000000000000000000",14,"0x0000000000000000000000000000000000000000000000000000000000000000"]`

	got, err := Decode([]byte(msg))
	require.NoError(t, err)

	want := []Message{
		SubscribedTo{GenesisHash: zeroHash},
		UnsubscribedFrom{GenesisHash: zeroHash},
	}
	assert.Equal(t, want, got)
}

func TestDecodePongStaleNode(t *testing.T) {
	got, err := Decode([]byte(`[15,"pong",20,297]`))
	require.NoError(t, err)
	assert.Equal(t, []Message{Pong{Msg: "pong"}, StaleNode{NodeID: 297}}, got)
}

func TestDecodeUnknown(t *testing.T) {
	msg := `[0,32,42,["0x0000000000000000000000000000000000000000000000000000000000000000", 1]]`

	got, err := Decode([]byte(msg))
	require.NoError(t, err)

	want := []Message{
		Version{Value: 32},
		UnknownValue{Action: 42, Value: `["0x0000000000000000000000000000000000000000000000000000000000000000", 1]`},
	}
	assert.Equal(t, want, got)
}

func TestDecodeOddLengthArrayFails(t *testing.T) {
	_, err := Decode([]byte(`[0,32,1]`))
	assert.Error(t, err)
}

func TestDecodeMalformedJSONFails(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodePayloadShapeMismatchFails(t *testing.T) {
	_, err := Decode([]byte(`[1,[1]]`))
	assert.Error(t, err)
}
