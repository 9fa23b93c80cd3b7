// Package broadcast implements the Broadcast Supervisor: active when the
// tracer is started with --all, it owns one Tracker per parachain it has
// ever seen a head for, spawning them on first sight and evicting ones
// that stop producing.
//
// Grounded on the `evict_stalled` function and the broadcast-subscription
// loop in original_source/parachain-tracer/src/main.rs.
package broadcast

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chainwatch/paratracer/collector"
	"github.com/chainwatch/paratracer/internal/mathutil"
	"github.com/chainwatch/paratracer/internal/priochan"
)

// DefaultMaxParachainStall is --max-parachain-stall's default.
const DefaultMaxParachainStall = 256

// Config configures a Supervisor.
type Config struct {
	MaxParachainStall uint32
}

// Spawner starts a new tracker for paraID and returns the channel the
// supervisor feeds it events through, plus a wait function that blocks
// until the tracker's Run loop returns (used to await shutdown).
type Spawner func(paraID uint32) (queue *priochan.Chan[collector.UpdateEvent], wait func() error)

// Supervisor fans collector update events out to one tracker per
// parachain, evicting stalled ones as spec.md §4.6 describes.
type Supervisor struct {
	config Config
	spawn  Spawner
	log    *logrus.Entry

	mu             sync.Mutex
	trackers       map[uint32]*priochan.Chan[collector.UpdateEvent]
	lastBlock      map[uint32]uint32
	bestKnownBlock uint32
	group          *errgroup.Group
}

// New builds a Supervisor. A zero-value config.MaxParachainStall is
// replaced with DefaultMaxParachainStall.
func New(config Config, spawn Spawner, log *logrus.Entry) *Supervisor {
	if config.MaxParachainStall == 0 {
		config.MaxParachainStall = DefaultMaxParachainStall
	}
	return &Supervisor{
		config:    config,
		spawn:     spawn,
		log:       log,
		trackers:  make(map[uint32]*priochan.Chan[collector.UpdateEvent]),
		lastBlock: make(map[uint32]uint32),
	}
}

// Run consumes source until it closes or Termination arrives, then drops
// every tracker's channel and awaits all of them before returning.
func (s *Supervisor) Run(ctx context.Context, source *priochan.Chan[collector.UpdateEvent]) error {
	group, groupCtx := errgroup.WithContext(ctx)
	s.group = group

	for {
		ev, ok := source.Recv(ctx)
		if !ok {
			break
		}
		switch e := ev.(type) {
		case collector.NewHead:
			s.handleNewHead(groupCtx, e)
		case collector.NewSession:
			s.dispatchAll(groupCtx, e)
		case collector.Termination:
			s.terminate()
			return s.group.Wait()
		}
	}

	s.terminate()
	return s.group.Wait()
}

// handleNewHead ensures a tracker exists for the event's parachain,
// forwards the event, records last_block, and evicts stalled trackers
// whenever best_known_block advances.
func (s *Supervisor) handleNewHead(ctx context.Context, event collector.NewHead) {
	s.mu.Lock()
	if _, ok := s.trackers[event.ParaID]; !ok {
		queue, wait := s.spawn(event.ParaID)
		s.trackers[event.ParaID] = queue
		s.group.Go(wait)
	}
	queue := s.trackers[event.ParaID]

	s.lastBlock[event.ParaID] = event.RelayParentNumber
	advanced := event.RelayParentNumber > s.bestKnownBlock
	if advanced {
		s.bestKnownBlock = event.RelayParentNumber
	}
	s.mu.Unlock()

	if err := queue.Send(ctx, event); err != nil {
		s.log.WithError(err).Debug("parachain tracker consumer gone")
	}

	if advanced {
		s.evictStalled()
	}
}

// evictStalled drops the sender for every parachain whose last observed
// block trails best_known_block by more than MaxParachainStall, which
// closes its tracker's input channel and lets it terminate and print its
// summary on its own.
func (s *Supervisor) evictStalled() {
	s.mu.Lock()
	var evicted []uint32
	for paraID, last := range s.lastBlock {
		if mathutil.SaturatingSub(s.bestKnownBlock, last) > s.config.MaxParachainStall {
			evicted = append(evicted, paraID)
		}
	}
	for _, paraID := range evicted {
		if queue, ok := s.trackers[paraID]; ok {
			queue.Close()
			delete(s.trackers, paraID)
		}
		delete(s.lastBlock, paraID)
	}
	s.mu.Unlock()

	for _, paraID := range evicted {
		s.log.Infof("evicting stalled parachain %d", paraID)
	}
}

// dispatchAll forwards event (a session change) to every current tracker.
func (s *Supervisor) dispatchAll(ctx context.Context, event collector.UpdateEvent) {
	s.mu.Lock()
	queues := make([]*priochan.Chan[collector.UpdateEvent], 0, len(s.trackers))
	for _, q := range s.trackers {
		queues = append(queues, q)
	}
	s.mu.Unlock()

	for _, q := range queues {
		if err := q.Send(ctx, event); err != nil {
			s.log.Debug("parachain tracker consumer gone")
		}
	}
}

// terminate drops every remaining tracker's sender, a priority-lane
// Termination first so it is observed ahead of any queued backlog.
func (s *Supervisor) terminate() {
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()
	for paraID, queue := range s.trackers {
		_ = queue.SendPriority(ctx, collector.Termination{})
		queue.Close()
		delete(s.trackers, paraID)
	}
}
