package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/chainwatch/paratracer/collector"
	"github.com/chainwatch/paratracer/internal/priochan"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

// recordingTracker is a minimal stand-in for parachain.Tracker: it reads
// from its queue until closed, recording every event it saw.
type recordingTracker struct {
	mu     sync.Mutex
	events []collector.UpdateEvent
}

func (r *recordingTracker) run(queue *priochan.Chan[collector.UpdateEvent]) func() error {
	return func() error {
		for {
			ev, ok := queue.Recv(context.Background())
			if !ok {
				return nil
			}
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
		}
	}
}

func newTestSupervisor(t *testing.T, stall uint32) (*Supervisor, map[uint32]*recordingTracker) {
	trackers := make(map[uint32]*recordingTracker)
	var mu sync.Mutex
	spawn := func(paraID uint32) (*priochan.Chan[collector.UpdateEvent], func() error) {
		queue := priochan.New[collector.UpdateEvent](8, 1)
		tr := &recordingTracker{}
		mu.Lock()
		trackers[paraID] = tr
		mu.Unlock()
		return queue, tr.run(queue)
	}
	return New(Config{MaxParachainStall: stall}, spawn, testLog()), trackers
}

// TestEvictionDropsOnlyStalledParachain is scenario S6 verbatim:
// max_parachain_stall=256, last_block={100→1000, 200→700}, observe head
// for 100 at 1100 ⇒ 200 evicted, 100 retained.
func TestEvictionDropsOnlyStalledParachain(t *testing.T) {
	sup, trackers := newTestSupervisor(t, 256)
	source := priochan.New[collector.UpdateEvent](8, 1)

	done := make(chan error, 1)
	go func() { done <- sup.Run(context.Background(), source) }()

	send := func(paraID, number uint32) {
		require.NoError(t, source.Send(context.Background(), collector.NewHead{
			ParaID: paraID, RelayParentNumber: number, RelayParentHashes: []types.Hash{{byte(paraID)}},
		}))
	}
	send(100, 1000)
	send(200, 700)
	send(100, 1100)

	require.Eventually(t, func() bool {
		sup.mu.Lock()
		defer sup.mu.Unlock()
		_, has200 := sup.trackers[200]
		_, has100 := sup.trackers[100]
		return !has200 && has100
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, source.SendPriority(context.Background(), collector.Termination{}))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Termination")
	}

	require.Contains(t, trackers, 100)
	require.Contains(t, trackers, 200)
}

func TestHandleNewHeadSpawnsTrackerOnFirstSight(t *testing.T) {
	sup, trackers := newTestSupervisor(t, 256)
	source := priochan.New[collector.UpdateEvent](8, 1)

	done := make(chan error, 1)
	go func() { done <- sup.Run(context.Background(), source) }()

	require.NoError(t, source.Send(context.Background(), collector.NewHead{ParaID: 42, RelayParentNumber: 1, RelayParentHashes: []types.Hash{{1}}}))
	require.Eventually(t, func() bool {
		sup.mu.Lock()
		defer sup.mu.Unlock()
		_, ok := sup.trackers[42]
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, source.SendPriority(context.Background(), collector.Termination{}))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Termination")
	}

	// The forwarded NewHead, then the Termination that terminate() sends on
	// the priority lane before closing the tracker's queue.
	require.Len(t, trackers[42].events, 2)
}

func TestNewSessionFansOutToAllTrackers(t *testing.T) {
	sup, trackers := newTestSupervisor(t, 256)
	source := priochan.New[collector.UpdateEvent](8, 1)

	done := make(chan error, 1)
	go func() { done <- sup.Run(context.Background(), source) }()

	require.NoError(t, source.Send(context.Background(), collector.NewHead{ParaID: 1, RelayParentNumber: 10, RelayParentHashes: []types.Hash{{1}}}))
	require.NoError(t, source.Send(context.Background(), collector.NewHead{ParaID: 2, RelayParentNumber: 10, RelayParentHashes: []types.Hash{{2}}}))
	require.Eventually(t, func() bool {
		sup.mu.Lock()
		defer sup.mu.Unlock()
		return len(sup.trackers) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, source.Send(context.Background(), collector.NewSession{Index: 7}))

	require.NoError(t, source.SendPriority(context.Background(), collector.Termination{}))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Termination")
	}

	for _, paraID := range []uint32{1, 2} {
		tr := trackers[paraID]
		tr.mu.Lock()
		var sawSession bool
		for _, ev := range tr.events {
			if _, ok := ev.(collector.NewSession); ok {
				sawSession = true
			}
		}
		tr.mu.Unlock()
		require.True(t, sawSession, "parachain %d did not observe NewSession", paraID)
	}
}
