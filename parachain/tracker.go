package parachain

import (
	"context"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/sirupsen/logrus"

	"github.com/chainwatch/paratracer/collector"
	"github.com/chainwatch/paratracer/internal/mathutil"
	"github.com/chainwatch/paratracer/internal/priochan"
	"github.com/chainwatch/paratracer/metrics"
	"github.com/chainwatch/paratracer/rpcclient"
)

// sessionHistoryLimit bounds the rolling window of per-session stats
// snapshots new_session keeps; nothing in spec.md ties a number to "rolls
// over the rolling statistics window", so this is sized generously for a
// CLI run rather than derived from a named constant.
const sessionHistoryLimit = 16

// RequestExecutor is the subset of rpcclient.Executor the tracker calls
// directly, beyond what the collector already supplies through StorageAPI.
type RequestExecutor interface {
	GetBlockTimestamp(ctx context.Context, url string, hash *types.Hash) (uint64, error)
	GetBackingGroups(ctx context.Context, url string, hash types.Hash) ([]rpcclient.BackingGroup, error)
}

// Config configures one parachain's Tracker.
type Config struct {
	ParaID    uint32
	URL       string
	MaxBlocks uint32 // 0 means unbounded; mirrors --blocks N
}

type sessionSnapshot struct {
	Index uint32
	Stats Stats
}

// Tracker drives one parachain's BlockInfo state machine from collector
// update events, maintains lifetime statistics, and prints a progress
// line per relay block plus a summary table on shutdown.
//
// Grounded on spec.md §4.5's numbered transition rules; no tracker.rs is
// present in the filtered original_source (only its caller,
// parachain-tracer/src/main.rs, survived filtering), so the method
// bodies are authored directly from the spec's rule list rather than
// ported from a Rust source file.
type Tracker struct {
	config   Config
	queue    *priochan.Chan[collector.UpdateEvent]
	storage  collector.StorageAPI
	executor RequestExecutor
	metrics  metrics.Metrics
	log      *logrus.Entry

	info BlockInfo

	stats               Stats
	lastIncludedNumber  *uint32
	lastBackedTimestamp *uint64
	lastRelayParent     types.Hash
	validatorGroups     []rpcclient.BackingGroup
	sessionHistory      []sessionSnapshot
}

// New builds a Tracker for one parachain. queue is the per-parachain
// update channel returned by collector.Collector.SubscribeParachain.
func New(config Config, queue *priochan.Chan[collector.UpdateEvent], storage collector.StorageAPI, executor RequestExecutor, m metrics.Metrics, log *logrus.Entry) *Tracker {
	return &Tracker{
		config:   config,
		queue:    queue,
		storage:  storage,
		executor: executor,
		metrics:  m,
		log:      log,
	}
}

// Run consumes update events until the channel closes or Termination
// arrives, printing the shutdown summary before returning.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		ev, ok := t.queue.Recv(ctx)
		if !ok {
			t.printSummary()
			return nil
		}
		switch e := ev.(type) {
		case collector.NewHead:
			t.handleNewHead(ctx, e)
			if t.config.MaxBlocks > 0 && t.stats.TotalBlocks >= t.config.MaxBlocks {
				t.printSummary()
				return nil
			}
		case collector.NewSession:
			t.handleNewSession(ctx, e.Index)
		case collector.Termination:
			t.printSummary()
			return nil
		}
	}
}

// handleNewHead runs inject_block for every relay fork in the event,
// newest first, each independently per spec.md §4.5.
func (t *Tracker) handleNewHead(ctx context.Context, event collector.NewHead) {
	for _, relayFork := range event.RelayParentHashes {
		t.injectBlock(ctx, relayFork, event.RelayParentNumber)
	}
}

// injectBlock is spec.md §4.5's inject_block(relay_fork, relay_parent_number).
func (t *Tracker) injectBlock(ctx context.Context, relayFork types.Hash, relayParentNumber uint32) {
	t.lastRelayParent = relayFork
	t.stats.TotalBlocks++

	core, haveCore := t.storage.CoreInfo(t.config.ParaID)
	occupied := haveCore && core.Occupied
	if haveCore {
		t.info.MaxAvailabilityBits = core.MaxAvailabilityBits
		t.info.CurrentAvailabilityBits = core.CurrentAvailabilityBits
		t.info.BitfieldCount = core.BitfieldCount
		t.info.CoreOccupied = core.Occupied
	}

	candidate, haveCandidate := t.storage.CandidateAt(t.config.ParaID, relayFork)
	knownCandidate := haveCandidate && t.info.CandidateHash != nil && *t.info.CandidateHash == candidate.Hash

	switch {
	case !haveCandidate && !occupied:
		t.stats.SkippedSlots++
		t.metrics.OnSkippedSlot(t.config.ParaID)

	case haveCandidate && !knownCandidate:
		if err := t.info.SetCandidate(candidate.Descriptor, candidate.Commitments); err != nil {
			t.log.WithError(err).Warn("failed to set candidate")
			break
		}
		t.info.SetBacked()
		t.stats.BackedCount++
		t.metrics.OnBacked(t.config.ParaID)
		t.recordBlockTime(ctx, relayFork)

	case haveCandidate && occupied && !t.info.IsDataAvailable():
		t.info.SetPending()

	case !occupied && t.info.IsPending():
		t.info.SetIncluded()
		t.stats.IncludedCount++
		t.metrics.OnIncluded(relayParentNumber, t.lastIncludedNumber, t.config.ParaID)
		if t.lastIncludedNumber != nil {
			t.stats.recordInclusionDelay(mathutil.SaturatingSub(relayParentNumber, *t.lastIncludedNumber))
		}
		number := relayParentNumber
		t.lastIncludedNumber = &number
	}

	t.evaluateDerivedSignals()
	t.printProgress(relayParentNumber, t.info.State())
	t.info.MaybeReset()
}

// evaluateDerivedSignals is spec.md §4.5 step 2: low-bitfield propagation
// and slow-availability are reported every inject_block call, independent
// of the state transition taken above.
func (t *Tracker) evaluateDerivedSignals() {
	low := t.info.IsBitfieldPropagationLow()
	t.metrics.OnBitfields(t.info.BitfieldCount, low, t.config.ParaID)
	if low {
		t.stats.LowBitfieldsCount++
	}
	if t.info.IsPending() && !t.info.IsDataAvailable() {
		t.stats.SlowAvailabilityCount++
		t.metrics.OnSlowAvailability(t.config.ParaID)
	}
}

// recordBlockTime measures elapsed wall time since the previously backed
// candidate and feeds it to pc_block_time, per original_source's
// timestamp-delta block-time measurement.
func (t *Tracker) recordBlockTime(ctx context.Context, relayFork types.Hash) {
	ts, err := t.executor.GetBlockTimestamp(ctx, t.config.URL, &relayFork)
	if err != nil {
		t.log.WithError(err).Warn("failed to read block timestamp")
		return
	}
	if t.lastBackedTimestamp != nil && ts > *t.lastBackedTimestamp {
		seconds := float64(ts-*t.lastBackedTimestamp) / 1000
		t.metrics.OnBlock(seconds, t.config.ParaID)
		t.stats.recordBlockTime(seconds)
	}
	t.lastBackedTimestamp = &ts
}

// handleNewSession is spec.md §4.5's new_session(idx): rolls over the
// rolling statistics window and refreshes validator group membership.
func (t *Tracker) handleNewSession(ctx context.Context, idx uint32) {
	t.sessionHistory = append(t.sessionHistory, sessionSnapshot{Index: idx, Stats: t.stats})
	if len(t.sessionHistory) > sessionHistoryLimit {
		t.sessionHistory = t.sessionHistory[len(t.sessionHistory)-sessionHistoryLimit:]
	}

	groups, err := t.executor.GetBackingGroups(ctx, t.config.URL, t.lastRelayParent)
	if err != nil {
		t.log.WithError(err).Warn("failed to refresh backing groups")
		return
	}
	t.validatorGroups = groups
}

// RecordDispute folds a concluded dispute's outcome into this tracker's
// statistics, for callers that decode dispute events separately from the
// CollectorUpdateEvent stream (spec.md's supplemented dispute metrics).
func (t *Tracker) RecordDispute(outcome metrics.DisputesOutcome) {
	t.stats.recordDispute(outcome)
	t.metrics.OnDisputed(outcome, t.config.ParaID)
}

func (t *Tracker) printSummary() {
	fmt.Fprintln(progressWriter, t.stats.Summary(t.config.ParaID))
}
