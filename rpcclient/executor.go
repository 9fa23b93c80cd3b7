package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/sirupsen/logrus"

	"github.com/chainwatch/paratracer/internal/errs"
	"github.com/chainwatch/paratracer/internal/retry"
)

// Executor is the Request Executor: a typed RPC surface over a pooled,
// retrying transport. One Executor is shared across the collector and
// every parachain tracker.
type Executor struct {
	pool  *Pool
	retry retry.Options
	log   *logrus.Entry
}

// NewExecutor builds an Executor backed by a fresh connection pool sized
// for maxConnections distinct endpoints.
func NewExecutor(maxConnections int, retryOpts retry.Options, log *logrus.Entry) (*Executor, error) {
	pool, err := NewPool(maxConnections, log)
	if err != nil {
		return nil, err
	}
	return &Executor{pool: pool, retry: retryOpts, log: log}, nil
}

// call retries a single RPC round-trip per the Executor's RetryOptions,
// matching "on transport error, retries per RetryOptions before returning
// a typed error."
func (e *Executor) call(ctx context.Context, url, method string, params any) (json.RawMessage, error) {
	var result json.RawMessage
	err := retry.Do(ctx, e.retry, func() error {
		c, err := e.pool.Get(url)
		if err != nil {
			return err
		}
		result, err = c.call(ctx, method, params)
		return err
	})
	return result, err
}

// GetBlockHead fetches a block header; hash of nil fetches the current
// best head.
func (e *Executor) GetBlockHead(ctx context.Context, url string, hash *types.Hash) (BlockHeader, error) {
	raw, err := e.call(ctx, url, "chain_getHeader", rpcHashParam(hash))
	if err != nil {
		return BlockHeader{}, err
	}
	var wire struct {
		ParentHash     types.Hash `json:"parentHash"`
		Number         types.U32  `json:"number"`
		StateRoot      types.Hash `json:"stateRoot"`
		ExtrinsicsRoot types.Hash `json:"extrinsicsRoot"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return BlockHeader{}, fmt.Errorf("%w: block header: %v", errs.Decode, err)
	}
	header := BlockHeader{
		ParentHash:     wire.ParentHash,
		Number:         uint32(wire.Number),
		StateRoot:      wire.StateRoot,
		ExtrinsicsRoot: wire.ExtrinsicsRoot,
	}
	if hash != nil {
		header.Hash = *hash
	}
	return header, nil
}

// GetBlockTimestamp reads the inherent timestamp for hash (current head
// if nil), in milliseconds since the Unix epoch.
func (e *Executor) GetBlockTimestamp(ctx context.Context, url string, hash *types.Hash) (uint64, error) {
	raw, err := e.call(ctx, url, "state_call", []any{"Timestamp_now", "", hashHex(hash)})
	if err != nil {
		return 0, err
	}
	var ts uint64
	if err := json.Unmarshal(raw, &ts); err != nil {
		return 0, fmt.Errorf("%w: block timestamp: %v", errs.Decode, err)
	}
	return ts, nil
}

// ExtractParainherentData decodes the relay block's parachain inherent:
// backed candidates, occupied cores, and the bitfield count.
func (e *Executor) ExtractParainherentData(ctx context.Context, url string, hash *types.Hash) (ParainherentData, error) {
	raw, err := e.call(ctx, url, "state_call", []any{"ParachainHost_inherent_data", "", hashHex(hash)})
	if err != nil {
		return ParainherentData{}, err
	}
	var data ParainherentData
	if err := json.Unmarshal(raw, &data); err != nil {
		return ParainherentData{}, fmt.Errorf("%w: parainherent data: %v", errs.Decode, err)
	}
	return data, nil
}

// GetScheduledParas lists the para_ids with a core scheduled at hash.
func (e *Executor) GetScheduledParas(ctx context.Context, url string, hash types.Hash) ([]uint32, error) {
	raw, err := e.call(ctx, url, "state_call", []any{"ParachainHost_scheduled_paras", "", hashHex(&hash)})
	if err != nil {
		return nil, err
	}
	var paras []uint32
	if err := json.Unmarshal(raw, &paras); err != nil {
		return nil, fmt.Errorf("%w: scheduled paras: %v", errs.Decode, err)
	}
	return paras, nil
}

// GetOccupiedCores lists availability cores currently holding a candidate
// awaiting inclusion.
func (e *Executor) GetOccupiedCores(ctx context.Context, url string, hash types.Hash) ([]OccupiedCore, error) {
	raw, err := e.call(ctx, url, "state_call", []any{"ParachainHost_occupied_cores", "", hashHex(&hash)})
	if err != nil {
		return nil, err
	}
	var cores []OccupiedCore
	if err := json.Unmarshal(raw, &cores); err != nil {
		return nil, fmt.Errorf("%w: occupied cores: %v", errs.Decode, err)
	}
	return cores, nil
}

// GetBackingGroups lists the validator-index groups assigned to back
// cores at hash.
func (e *Executor) GetBackingGroups(ctx context.Context, url string, hash types.Hash) ([]BackingGroup, error) {
	raw, err := e.call(ctx, url, "state_call", []any{"ParachainHost_validator_groups", "", hashHex(&hash)})
	if err != nil {
		return nil, err
	}
	var groups []BackingGroup
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("%w: backing groups: %v", errs.Decode, err)
	}
	return groups, nil
}

// GetHostConfiguration fetches the parachains configuration module's
// active configuration.
func (e *Executor) GetHostConfiguration(ctx context.Context, url string) (HostConfiguration, error) {
	raw, err := e.call(ctx, url, "state_call", []any{"ParachainHost_config", "", nil})
	if err != nil {
		return HostConfiguration{}, err
	}
	var conf HostConfiguration
	if err := json.Unmarshal(raw, &conf); err != nil {
		return HostConfiguration{}, fmt.Errorf("%w: host configuration: %v", errs.Decode, err)
	}
	return conf, nil
}

// GetSessionIndex returns the session index active at hash, used by the
// collector to detect session changes.
func (e *Executor) GetSessionIndex(ctx context.Context, url string, hash types.Hash) (uint32, error) {
	raw, err := e.call(ctx, url, "state_call", []any{"ParachainHost_session_index_for_child", "", hashHex(&hash)})
	if err != nil {
		return 0, err
	}
	var idx uint32
	if err := json.Unmarshal(raw, &idx); err != nil {
		return 0, fmt.Errorf("%w: session index: %v", errs.Decode, err)
	}
	return idx, nil
}

// UnpinChainHead releases a server-side retained block reference held by
// subID's chain-head-follow subscription.
func (e *Executor) UnpinChainHead(ctx context.Context, url, subID string, hash types.Hash) error {
	_, err := e.call(ctx, url, "chainHead_v1_unpin", []any{subID, hash.Hex()})
	return err
}

func hashHex(hash *types.Hash) string {
	if hash == nil {
		return ""
	}
	return hash.Hex()
}

func rpcHashParam(hash *types.Hash) []any {
	if hash == nil {
		return []any{}
	}
	return []any{hash.Hex()}
}
