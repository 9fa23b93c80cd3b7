package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/sirupsen/logrus"

	"github.com/chainwatch/paratracer/chainhead"
	"github.com/chainwatch/paratracer/internal/errs"
	"github.com/chainwatch/paratracer/internal/retry"
)

// Dialer implements chainhead.Dialer by opening a chainHead_follow
// subscription over a pooled conn.
type Dialer struct {
	pool *Pool
	log  *logrus.Entry
}

// NewDialer builds a Dialer over pool. Every follow subscription it opens
// against the same endpoint reuses that pool's connection; an Executor
// dials through its own pool, so its calls use a separate connection.
func NewDialer(pool *Pool, log *logrus.Entry) *Dialer {
	return &Dialer{pool: pool, log: log}
}

// Subscribe opens a chainHead_follow subscription against url, retrying
// the initial dial-and-subscribe per opts.
func (d *Dialer) Subscribe(ctx context.Context, url string, opts retry.Options) (chainhead.Follower, error) {
	var follower *follower
	err := retry.Do(ctx, opts, func() error {
		c, err := d.pool.Get(url)
		if err != nil {
			return err
		}
		subID, notifications, err := c.subscribe(ctx, "chainHead_v1_follow", []any{false})
		if err != nil {
			return err
		}
		follower = &follower{conn: c, subID: subID, notifications: notifications, log: d.log.WithField("url", url)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return follower, nil
}

// follower implements chainhead.Follower over one chainHead_follow
// subscription.
type follower struct {
	conn          *conn
	subID         string
	notifications <-chan json.RawMessage
	log           *logrus.Entry
}

// wireFollowEvent mirrors the chainHead_follow notification payload shape.
type wireFollowEvent struct {
	Event string `json:"event"`

	// initialized
	FinalizedBlockHashes []types.Hash `json:"finalizedBlockHashes"`

	// newBlock
	BlockHash  types.Hash `json:"blockHash"`
	ParentHash types.Hash `json:"parentBlockHash"`

	// bestBlockChanged
	BestBlockHash types.Hash `json:"bestBlockHash"`

	// finalized
	PrunedBlockHashes []types.Hash `json:"prunedBlockHashes"`
}

// Next decodes the next chainHead_follow notification into a FollowEvent.
func (f *follower) Next(ctx context.Context) (chainhead.FollowEvent, error) {
	select {
	case raw, ok := <-f.notifications:
		if !ok {
			return chainhead.FollowEvent{}, fmt.Errorf("%w: chain head subscription closed", errs.Transport)
		}
		var wire wireFollowEvent
		if err := json.Unmarshal(raw, &wire); err != nil {
			return chainhead.FollowEvent{}, fmt.Errorf("%w: follow event: %v", errs.Decode, err)
		}
		return decodeFollowEvent(wire)
	case <-ctx.Done():
		return chainhead.FollowEvent{}, ctx.Err()
	}
}

func decodeFollowEvent(wire wireFollowEvent) (chainhead.FollowEvent, error) {
	switch wire.Event {
	case "initialized":
		finalized := wire.FinalizedBlockHashes
		var head types.Hash
		if len(finalized) > 0 {
			head = finalized[len(finalized)-1]
		}
		return chainhead.FollowEvent{Kind: chainhead.FollowInitialized, FinalizedBlockHash: head}, nil
	case "newBlock":
		return chainhead.FollowEvent{Kind: chainhead.FollowNewBlock}, nil
	case "bestBlockChanged":
		return chainhead.FollowEvent{Kind: chainhead.FollowBestBlockChanged, BestBlockHash: wire.BestBlockHash}, nil
	case "finalized":
		return chainhead.FollowEvent{
			Kind:                 chainhead.FollowFinalized,
			FinalizedBlockHashes: wire.FinalizedBlockHashes,
			PrunedBlockHashes:    wire.PrunedBlockHashes,
		}, nil
	case "stop":
		return chainhead.FollowEvent{Kind: chainhead.FollowStop}, nil
	default:
		return chainhead.FollowEvent{}, fmt.Errorf("%w: unknown follow event %q", errs.Decode, wire.Event)
	}
}

// Unpin releases a previously pinned block hash.
func (f *follower) Unpin(ctx context.Context, hash types.Hash) error {
	_, err := f.conn.call(ctx, "chainHead_v1_unpin", []any{f.subID, hash.Hex()})
	return err
}

func (f *follower) Close() {
	_, _ = f.conn.call(context.Background(), "chainHead_v1_unfollow", []any{f.subID})
}
