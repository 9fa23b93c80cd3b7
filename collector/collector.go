// Package collector implements the Collector: it follows chain-head events
// for one relay endpoint, owns the Records Store, and publishes typed
// CollectorUpdateEvent-equivalent updates to per-parachain and broadcast
// subscribers.
//
// Grounded on spec.md §4.4 for the per-head algorithm and on
// original_source/parachain-tracer/src/main.rs for the external shape
// (`Collector::subscribe_parachain_updates`, `subscribe_broadcast_updates`,
// `api()`, `CollectorUpdateEvent`) the tracker and broadcast supervisor
// consume. The Rust Collector's own internals live in a crate
// (`polkadot_introspector_essentials::collector`) not present in the
// filtered original_source, so the per-head processing sequence here is
// authored directly from spec.md §4.4's numbered steps.
package collector

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/sirupsen/logrus"

	"github.com/chainwatch/paratracer/candidatehash"
	"github.com/chainwatch/paratracer/chainhead"
	"github.com/chainwatch/paratracer/internal/errs"
	"github.com/chainwatch/paratracer/internal/priochan"
	"github.com/chainwatch/paratracer/rpcclient"
)

// NormalChannelCapacity matches COLLECTOR_NORMAL_CHANNEL_CAPACITY: the
// normal-lane depth of every per-parachain and broadcast update channel.
const NormalChannelCapacity = 32

// RequestExecutor is the subset of rpcclient.Executor the collector calls.
// Declared here, not in rpcclient, so Collector depends on the narrowest
// surface it needs and tests can supply a fake.
type RequestExecutor interface {
	GetBlockHead(ctx context.Context, url string, hash *types.Hash) (rpcclient.BlockHeader, error)
	ExtractParainherentData(ctx context.Context, url string, hash *types.Hash) (rpcclient.ParainherentData, error)
	GetSessionIndex(ctx context.Context, url string, hash types.Hash) (uint32, error)
}

// Config configures a Collector.
type Config struct {
	URL       string
	MaxBlocks int
}

// Collector follows one relay endpoint's chain-head events and fans typed
// updates out to subscribers. One Collector owns one Records Store.
type Collector struct {
	config   Config
	executor RequestExecutor
	queues   []*priochan.Chan[chainhead.Event]
	storage  *storage
	log      *logrus.Entry

	perPara   map[uint32]*priochan.Chan[UpdateEvent]
	broadcast *priochan.Chan[UpdateEvent]

	lastParaNumber map[uint32]uint32
	lastParaHashes map[uint32][]types.Hash
	lastSession    *uint32
}

// New builds a Collector. queues is this collector's registered consumer
// slot on the subscription layer (one entry per configured endpoint URL, as
// returned by chainhead.Subscription.CreateConsumer).
func New(config Config, executor RequestExecutor, queues []*priochan.Chan[chainhead.Event], log *logrus.Entry) *Collector {
	return &Collector{
		config:         config,
		executor:       executor,
		queues:         queues,
		storage:        newStorage(config.MaxBlocks),
		log:            log,
		perPara:        make(map[uint32]*priochan.Chan[UpdateEvent]),
		broadcast:      priochan.New[UpdateEvent](NormalChannelCapacity, 1),
		lastParaNumber: make(map[uint32]uint32),
		lastParaHashes: make(map[uint32][]types.Hash),
	}
}

// API exposes the Records Store read surface the tracker consults for
// candidate/core data that arrives alongside a NewHead.
func (c *Collector) API() StorageAPI { return c.storage }

// SubscribeBroadcast returns the channel carrying every update across all
// parachains, used by the broadcast supervisor in "track all" mode.
func (c *Collector) SubscribeBroadcast() *priochan.Chan[UpdateEvent] { return c.broadcast }

// SubscribeParachain returns paraID's update channel, creating it on first
// subscription. Must be called before Run for the subscription to receive
// updates from the start.
func (c *Collector) SubscribeParachain(paraID uint32) *priochan.Chan[UpdateEvent] {
	if ch, ok := c.perPara[paraID]; ok {
		return ch
	}
	ch := priochan.New[UpdateEvent](NormalChannelCapacity, 1)
	c.perPara[paraID] = ch
	return ch
}

// Run drains this collector's chain-head queues until ctx is canceled or
// every queue closes, processing each NewBestHead per spec.md §4.4 and
// emitting Termination to every subscriber on exit.
func (c *Collector) Run(ctx context.Context) error {
	defer c.terminate()

	merged := make(chan chainhead.Event, NormalChannelCapacity)
	var forwarders sync.WaitGroup
	for _, q := range c.queues {
		q := q
		forwarders.Add(1)
		go func() {
			defer forwarders.Done()
			for {
				ev, ok := q.Recv(ctx)
				if !ok {
					return
				}
				select {
				case merged <- ev:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		forwarders.Wait()
		close(merged)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-merged:
			if !ok {
				return nil
			}
			if ev.Kind != chainhead.NewBestHead {
				continue
			}
			if err := c.handleNewBestHead(ctx, ev.Hash); err != nil {
				c.log.WithError(err).Warnf("failed to process head %s", ev.Hash.Hex())
			}
		}
	}
}

// handleNewBestHead is spec.md §4.4's numbered algorithm for one new
// best-head hash.
func (c *Collector) handleNewBestHead(ctx context.Context, hash types.Hash) error {
	if c.storage.seenHead(hash) {
		return nil
	}

	header, err := c.executor.GetBlockHead(ctx, c.config.URL, &hash)
	if err != nil {
		return fmt.Errorf("get block head: %w", err)
	}

	data, err := c.executor.ExtractParainherentData(ctx, c.config.URL, &hash)
	if err != nil {
		return fmt.Errorf("extract parainherent data: %w", err)
	}

	affected := make(map[uint32]struct{})

	for _, bc := range data.BackedCandidates {
		candHash, err := candidatehash.Hash(bc.Descriptor, bc.Commitments)
		if err != nil {
			c.log.WithError(err).Warn("failed to hash backed candidate")
			continue
		}
		info := CandidateInfo{Descriptor: bc.Descriptor, Commitments: bc.Commitments, Hash: candHash}
		if err := c.storage.recordCandidate(bc.ParaID, hash, header.Number, info); err != nil {
			if !errors.Is(err, errs.Duplicate) {
				c.log.WithError(err).Warn("failed to store backed candidate")
			}
			continue
		}
		affected[bc.ParaID] = struct{}{}
	}

	for _, core := range data.OccupiedCores {
		c.storage.setCoreInfo(core.ParaID, CoreInfo{
			Occupied:                true,
			MaxAvailabilityBits:     core.ValidatorCount,
			CurrentAvailabilityBits: popcount(core.AvailabilityBitfield),
			BitfieldCount:           data.BitfieldCount,
		})
		affected[core.ParaID] = struct{}{}
	}

	c.storage.markHeadSeen(hash)

	for paraID := range affected {
		event := NewHead{
			ParaID:            paraID,
			RelayParentNumber: header.Number,
			RelayParentHashes: c.forkHashes(paraID, header.Number, hash),
		}
		c.dispatch(ctx, paraID, event)
	}

	idx, err := c.executor.GetSessionIndex(ctx, c.config.URL, hash)
	if err != nil {
		return fmt.Errorf("get session index: %w", err)
	}
	if c.lastSession == nil || *c.lastSession != idx {
		c.lastSession = &idx
		c.dispatchAll(ctx, NewSession{Index: idx})
	}

	return nil
}

// forkHashes returns the relay_parent_hashes for paraID's NewHead at number:
// a single hash, unless a prior best-head at the same number was already
// recorded for this parachain, in which case both hashes are returned,
// newest first, so the tracker can replay both forks.
func (c *Collector) forkHashes(paraID, number uint32, hash types.Hash) []types.Hash {
	if prevNumber, ok := c.lastParaNumber[paraID]; ok && prevNumber == number {
		hashes := append([]types.Hash{hash}, c.lastParaHashes[paraID]...)
		c.lastParaHashes[paraID] = hashes
		return hashes
	}
	hashes := []types.Hash{hash}
	c.lastParaNumber[paraID] = number
	c.lastParaHashes[paraID] = hashes
	return hashes
}

func (c *Collector) dispatch(ctx context.Context, paraID uint32, event UpdateEvent) {
	if ch, ok := c.perPara[paraID]; ok {
		if err := ch.Send(ctx, event); err != nil {
			c.log.Debug("parachain update consumer gone")
		}
	}
	if err := c.broadcast.Send(ctx, event); err != nil {
		c.log.Debug("broadcast update consumer gone")
	}
}

func (c *Collector) dispatchAll(ctx context.Context, event UpdateEvent) {
	for _, ch := range c.perPara {
		if err := ch.Send(ctx, event); err != nil {
			c.log.Debug("parachain update consumer gone")
		}
	}
	if err := c.broadcast.Send(ctx, event); err != nil {
		c.log.Debug("broadcast update consumer gone")
	}
}

// terminate emits Termination on the priority lane (ahead of any queued
// normal-lane backlog) to every subscriber, then closes their channels.
func (c *Collector) terminate() {
	ctx := context.Background()
	for _, ch := range c.perPara {
		_ = ch.SendPriority(ctx, Termination{})
		ch.Close()
	}
	_ = c.broadcast.SendPriority(ctx, Termination{})
	c.broadcast.Close()
}

func popcount(bitfield []byte) uint32 {
	var count int
	for _, b := range bitfield {
		count += bits.OnesCount8(b)
	}
	return uint32(count)
}
