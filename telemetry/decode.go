package telemetry

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	jsoniter "github.com/json-iterator/go"

	"github.com/chainwatch/paratracer/internal/errs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Action codes, wire-exact.
const (
	actionVersion          = 0
	actionBestBlock        = 1
	actionBestFinalized    = 2
	actionAddedNode        = 3
	actionRemovedNode      = 4
	actionLocatedNode      = 5
	actionImportedBlock    = 6
	actionFinalizedBlock   = 7
	actionNodeStatsUpdate  = 8
	actionHardware         = 9
	actionTimeSync         = 10
	actionAddedChain       = 11
	actionRemovedChain     = 12
	actionSubscribedTo     = 13
	actionUnsubscribedFrom = 14
	actionPong             = 15
	actionStaleNode        = 20
)

// Decode parses a telemetry feed batch: a JSON array of alternating
// action codes and payloads. Malformed JSON, an odd-length outer array,
// or a payload shape mismatch abort the whole batch with a decode error.
func Decode(data []byte) ([]Message, error) {
	var items []jsoniter.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: feed array: %v", errs.Decode, err)
	}
	if len(items)%2 != 0 {
		return nil, fmt.Errorf("%w: odd-length feed array (%d elements)", errs.Decode, len(items))
	}

	messages := make([]Message, 0, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		var action uint8
		if err := json.Unmarshal(items[i], &action); err != nil {
			return nil, fmt.Errorf("%w: action code: %v", errs.Decode, err)
		}
		msg, err := decodeOne(action, items[i+1])
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func decodeOne(action uint8, payload jsoniter.RawMessage) (Message, error) {
	switch action {
	case actionVersion:
		var v int
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, payloadErr("version", err)
		}
		return Version{Value: v}, nil

	case actionBestBlock:
		tuple, err := tupleOf(payload, 2, 3)
		if err != nil {
			return nil, payloadErr("best_block", err)
		}
		blockNumber, timestamp, err := twoUint64(tuple)
		if err != nil {
			return nil, payloadErr("best_block", err)
		}
		var avg *uint64
		if len(tuple) == 3 {
			var v uint64
			if err := json.Unmarshal(tuple[2], &v); err != nil {
				return nil, payloadErr("best_block", err)
			}
			avg = &v
		}
		return BestBlock{BlockNumber: blockNumber, Timestamp: timestamp, AvgBlockTime: avg}, nil

	case actionBestFinalized:
		tuple, err := tupleOf(payload, 2, 2)
		if err != nil {
			return nil, payloadErr("best_finalized", err)
		}
		blockNumber, err := uint64Of(tuple[0])
		if err != nil {
			return nil, payloadErr("best_finalized", err)
		}
		hash, err := hashOf(tuple[1])
		if err != nil {
			return nil, payloadErr("best_finalized", err)
		}
		return BestFinalized{BlockNumber: blockNumber, BlockHash: hash}, nil

	case actionAddedNode:
		outer, err := tupleOf(payload, 8, 8)
		if err != nil {
			return nil, payloadErr("added_node", err)
		}
		nodeID, err := uint64Of(outer[0])
		if err != nil {
			return nil, payloadErr("added_node", err)
		}
		details, err := nodeDetailsOf(outer[1])
		if err != nil {
			return nil, payloadErr("added_node", err)
		}
		stats, err := nodeStatsOf(outer[2])
		if err != nil {
			return nil, payloadErr("added_node", err)
		}
		io, err := nodeIOOf(outer[3])
		if err != nil {
			return nil, payloadErr("added_node", err)
		}
		hardware, err := nodeHardwareOf(outer[4])
		if err != nil {
			return nil, payloadErr("added_node", err)
		}
		blockDetails, err := blockDetailsOf(outer[5])
		if err != nil {
			return nil, payloadErr("added_node", err)
		}
		location, err := nodeLocationOf(outer[6])
		if err != nil {
			return nil, payloadErr("added_node", err)
		}
		startupTime, err := optionalUint64Of(outer[7])
		if err != nil {
			return nil, payloadErr("added_node", err)
		}
		return AddedNode{
			NodeID:       nodeID,
			Details:      details,
			Stats:        stats,
			IO:           io,
			Hardware:     hardware,
			BlockDetails: blockDetails,
			Location:     location,
			StartupTime:  startupTime,
		}, nil

	case actionRemovedNode:
		nodeID, err := uint64Of(payload)
		if err != nil {
			return nil, payloadErr("removed_node", err)
		}
		return RemovedNode{NodeID: nodeID}, nil

	case actionLocatedNode:
		tuple, err := tupleOf(payload, 4, 4)
		if err != nil {
			return nil, payloadErr("located_node", err)
		}
		nodeID, err := uint64Of(tuple[0])
		if err != nil {
			return nil, payloadErr("located_node", err)
		}
		var lat, long float32
		var city string
		if err := json.Unmarshal(tuple[1], &lat); err != nil {
			return nil, payloadErr("located_node", err)
		}
		if err := json.Unmarshal(tuple[2], &long); err != nil {
			return nil, payloadErr("located_node", err)
		}
		if err := json.Unmarshal(tuple[3], &city); err != nil {
			return nil, payloadErr("located_node", err)
		}
		return LocatedNode{NodeID: nodeID, Lat: lat, Long: long, City: city}, nil

	case actionImportedBlock:
		outer, err := tupleOf(payload, 2, 2)
		if err != nil {
			return nil, payloadErr("imported_block", err)
		}
		nodeID, err := uint64Of(outer[0])
		if err != nil {
			return nil, payloadErr("imported_block", err)
		}
		details, err := blockDetailsOf(outer[1])
		if err != nil {
			return nil, payloadErr("imported_block", err)
		}
		return ImportedBlock{NodeID: nodeID, BlockDetails: details}, nil

	case actionFinalizedBlock:
		tuple, err := tupleOf(payload, 3, 3)
		if err != nil {
			return nil, payloadErr("finalized_block", err)
		}
		nodeID, err := uint64Of(tuple[0])
		if err != nil {
			return nil, payloadErr("finalized_block", err)
		}
		blockNumber, err := uint64Of(tuple[1])
		if err != nil {
			return nil, payloadErr("finalized_block", err)
		}
		hash, err := hashOf(tuple[2])
		if err != nil {
			return nil, payloadErr("finalized_block", err)
		}
		return FinalizedBlock{NodeID: nodeID, BlockNumber: blockNumber, BlockHash: hash}, nil

	case actionNodeStatsUpdate:
		tuple, err := tupleOf(payload, 2, 2)
		if err != nil {
			return nil, payloadErr("node_stats_update", err)
		}
		nodeID, err := uint64Of(tuple[0])
		if err != nil {
			return nil, payloadErr("node_stats_update", err)
		}
		stats, err := nodeStatsOf(tuple[1])
		if err != nil {
			return nil, payloadErr("node_stats_update", err)
		}
		return NodeStatsUpdate{NodeID: nodeID, Stats: stats}, nil

	case actionHardware:
		tuple, err := tupleOf(payload, 2, 2)
		if err != nil {
			return nil, payloadErr("hardware", err)
		}
		nodeID, err := uint64Of(tuple[0])
		if err != nil {
			return nil, payloadErr("hardware", err)
		}
		hardware, err := nodeHardwareOf(tuple[1])
		if err != nil {
			return nil, payloadErr("hardware", err)
		}
		return Hardware{NodeID: nodeID, Hardware: hardware}, nil

	case actionTimeSync:
		t, err := uint64Of(payload)
		if err != nil {
			return nil, payloadErr("time_sync", err)
		}
		return TimeSync{Time: t}, nil

	case actionAddedChain:
		tuple, err := tupleOf(payload, 3, 3)
		if err != nil {
			return nil, payloadErr("added_chain", err)
		}
		var name string
		if err := json.Unmarshal(tuple[0], &name); err != nil {
			return nil, payloadErr("added_chain", err)
		}
		hash, err := hashOf(tuple[1])
		if err != nil {
			return nil, payloadErr("added_chain", err)
		}
		nodeCount, err := uint64Of(tuple[2])
		if err != nil {
			return nil, payloadErr("added_chain", err)
		}
		return AddedChain{Name: name, GenesisHash: hash, NodeCount: nodeCount}, nil

	case actionRemovedChain:
		hash, err := hashOf(payload)
		if err != nil {
			return nil, payloadErr("removed_chain", err)
		}
		return RemovedChain{GenesisHash: hash}, nil

	case actionSubscribedTo:
		hash, err := hashOf(payload)
		if err != nil {
			return nil, payloadErr("subscribed_to", err)
		}
		return SubscribedTo{GenesisHash: hash}, nil

	case actionUnsubscribedFrom:
		hash, err := hashOf(payload)
		if err != nil {
			return nil, payloadErr("unsubscribed_from", err)
		}
		return UnsubscribedFrom{GenesisHash: hash}, nil

	case actionPong:
		var msg string
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, payloadErr("pong", err)
		}
		return Pong{Msg: msg}, nil

	case actionStaleNode:
		nodeID, err := uint64Of(payload)
		if err != nil {
			return nil, payloadErr("stale_node", err)
		}
		return StaleNode{NodeID: nodeID}, nil

	default:
		return UnknownValue{Action: action, Value: string(payload)}, nil
	}
}

func payloadErr(name string, err error) error {
	return fmt.Errorf("%w: %s payload: %v", errs.Decode, name, err)
}

func tupleOf(raw jsoniter.RawMessage, minLen, maxLen int) ([]jsoniter.RawMessage, error) {
	var tuple []jsoniter.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return nil, err
	}
	if len(tuple) < minLen || len(tuple) > maxLen {
		return nil, fmt.Errorf("expected %d-%d elements, got %d", minLen, maxLen, len(tuple))
	}
	return tuple, nil
}

func uint64Of(raw jsoniter.RawMessage) (uint64, error) {
	var v uint64
	err := json.Unmarshal(raw, &v)
	return v, err
}

func twoUint64(tuple []jsoniter.RawMessage) (uint64, uint64, error) {
	a, err := uint64Of(tuple[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := uint64Of(tuple[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func blockDetailsOf(raw jsoniter.RawMessage) (BlockDetails, error) {
	inner, err := tupleOf(raw, 4, 5)
	if err != nil {
		return BlockDetails{}, err
	}
	height, err := uint64Of(inner[0])
	if err != nil {
		return BlockDetails{}, err
	}
	hash, err := hashOf(inner[1])
	if err != nil {
		return BlockDetails{}, err
	}
	blockTime, err := uint64Of(inner[2])
	if err != nil {
		return BlockDetails{}, err
	}
	blockTimestamp, err := uint64Of(inner[3])
	if err != nil {
		return BlockDetails{}, err
	}
	var propagation *uint64
	if len(inner) == 5 {
		v, err := uint64Of(inner[4])
		if err != nil {
			return BlockDetails{}, err
		}
		propagation = &v
	}
	return BlockDetails{
		Block:           Block{Hash: hash, Height: height},
		BlockTime:       blockTime,
		BlockTimestamp:  blockTimestamp,
		PropagationTime: propagation,
	}, nil
}

func nodeStatsOf(raw jsoniter.RawMessage) (NodeStats, error) {
	tuple, err := tupleOf(raw, 2, 2)
	if err != nil {
		return NodeStats{}, err
	}
	peers, txCount, err := twoUint64(tuple)
	if err != nil {
		return NodeStats{}, err
	}
	return NodeStats{Peers: peers, TxCount: txCount}, nil
}

func float64ArrayOf(raw jsoniter.RawMessage) ([]float64, error) {
	var v []float64
	err := json.Unmarshal(raw, &v)
	return v, err
}

func nodeIOOf(raw jsoniter.RawMessage) (NodeIO, error) {
	tuple, err := tupleOf(raw, 1, 1)
	if err != nil {
		return NodeIO{}, err
	}
	cache, err := float64ArrayOf(tuple[0])
	if err != nil {
		return NodeIO{}, err
	}
	return NodeIO{StateCacheSize: cache}, nil
}

func nodeHardwareOf(raw jsoniter.RawMessage) (NodeHardware, error) {
	tuple, err := tupleOf(raw, 3, 3)
	if err != nil {
		return NodeHardware{}, err
	}
	upload, err := float64ArrayOf(tuple[0])
	if err != nil {
		return NodeHardware{}, err
	}
	download, err := float64ArrayOf(tuple[1])
	if err != nil {
		return NodeHardware{}, err
	}
	cache, err := float64ArrayOf(tuple[2])
	if err != nil {
		return NodeHardware{}, err
	}
	return NodeHardware{Upload: upload, Download: download, StateCacheSize: cache}, nil
}

func optionalStringOf(raw jsoniter.RawMessage) (*string, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func optionalUint64Of(raw jsoniter.RawMessage) (*uint64, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	v, err := uint64Of(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func nodeDetailsOf(raw jsoniter.RawMessage) (NodeDetails, error) {
	tuple, err := tupleOf(raw, 3, 5)
	if err != nil {
		return NodeDetails{}, err
	}
	var name, implementation, version string
	if err := json.Unmarshal(tuple[0], &name); err != nil {
		return NodeDetails{}, err
	}
	if err := json.Unmarshal(tuple[1], &implementation); err != nil {
		return NodeDetails{}, err
	}
	if err := json.Unmarshal(tuple[2], &version); err != nil {
		return NodeDetails{}, err
	}
	var validator, networkID *string
	if len(tuple) >= 4 {
		if validator, err = optionalStringOf(tuple[3]); err != nil {
			return NodeDetails{}, err
		}
	}
	if len(tuple) == 5 {
		if networkID, err = optionalStringOf(tuple[4]); err != nil {
			return NodeDetails{}, err
		}
	}
	return NodeDetails{Name: name, Implementation: implementation, Version: version, Validator: validator, NetworkID: networkID}, nil
}

func nodeLocationOf(raw jsoniter.RawMessage) (*NodeLocation, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	tuple, err := tupleOf(raw, 3, 3)
	if err != nil {
		return nil, err
	}
	var lat, long float32
	var city string
	if err := json.Unmarshal(tuple[0], &lat); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tuple[1], &long); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tuple[2], &city); err != nil {
		return nil, err
	}
	return &NodeLocation{Lat: lat, Long: long, City: city}, nil
}

func hashOf(raw jsoniter.RawMessage) (types.Hash, error) {
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return types.Hash{}, err
	}
	hexStr = strings.TrimPrefix(hexStr, "0x")
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return types.Hash{}, err
	}
	return types.NewHash(b), nil
}
