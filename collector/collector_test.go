package collector

import (
	"context"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/chainwatch/paratracer/candidatehash"
	"github.com/chainwatch/paratracer/chainhead"
	"github.com/chainwatch/paratracer/internal/priochan"
	"github.com/chainwatch/paratracer/rpcclient"
)

type fakeExecutor struct {
	headers  map[types.Hash]rpcclient.BlockHeader
	inherent map[types.Hash]rpcclient.ParainherentData
	session  map[types.Hash]uint32
}

func (f *fakeExecutor) GetBlockHead(_ context.Context, _ string, hash *types.Hash) (rpcclient.BlockHeader, error) {
	return f.headers[*hash], nil
}

func (f *fakeExecutor) ExtractParainherentData(_ context.Context, _ string, hash *types.Hash) (rpcclient.ParainherentData, error) {
	return f.inherent[*hash], nil
}

func (f *fakeExecutor) GetSessionIndex(_ context.Context, _ string, hash types.Hash) (uint32, error) {
	return f.session[hash], nil
}

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func candidateFor(paraID uint32) rpcclient.BackedCandidate {
	return rpcclient.BackedCandidate{
		ParaID:      paraID,
		Descriptor:  candidatehash.CandidateDescriptor{ParaID: types.U32(paraID)},
		Commitments: candidatehash.CandidateCommitments{},
	}
}

func TestHandleNewBestHeadDispatchesAffectedParachains(t *testing.T) {
	h1 := types.Hash{1}
	exec := &fakeExecutor{
		headers:  map[types.Hash]rpcclient.BlockHeader{h1: {Number: 100}},
		inherent: map[types.Hash]rpcclient.ParainherentData{h1: {BackedCandidates: []rpcclient.BackedCandidate{candidateFor(200)}}},
		session:  map[types.Hash]uint32{h1: 1},
	}
	c := New(Config{URL: "ws://node", MaxBlocks: 10}, exec, nil, testLog())
	paraQueue := c.SubscribeParachain(200)

	require.NoError(t, c.handleNewBestHead(context.Background(), h1))

	ev, ok := paraQueue.Recv(context.Background())
	require.True(t, ok)
	head, ok := ev.(NewHead)
	require.True(t, ok)
	require.EqualValues(t, 200, head.ParaID)
	require.EqualValues(t, 100, head.RelayParentNumber)
	require.Equal(t, []types.Hash{h1}, head.RelayParentHashes)
}

func TestHandleNewBestHeadSkipsDuplicateHead(t *testing.T) {
	h1 := types.Hash{7}
	exec := &fakeExecutor{
		headers:  map[types.Hash]rpcclient.BlockHeader{h1: {Number: 5}},
		inherent: map[types.Hash]rpcclient.ParainherentData{h1: {}},
		session:  map[types.Hash]uint32{h1: 1},
	}
	c := New(Config{URL: "ws://node", MaxBlocks: 10}, exec, nil, testLog())

	require.NoError(t, c.handleNewBestHead(context.Background(), h1))
	require.NoError(t, c.handleNewBestHead(context.Background(), h1))
	require.True(t, c.storage.seenHead(h1))
}

func TestForkHashesCarriesBothHashesNewestFirst(t *testing.T) {
	c := New(Config{URL: "ws://node", MaxBlocks: 10}, &fakeExecutor{}, nil, testLog())

	first := c.forkHashes(300, 50, types.Hash{1})
	require.Equal(t, []types.Hash{{1}}, first)

	second := c.forkHashes(300, 50, types.Hash{2})
	require.Equal(t, []types.Hash{{2}, {1}}, second)
}

func TestSessionChangeEmitsNewSessionToEveryTracker(t *testing.T) {
	h1 := types.Hash{9}
	exec := &fakeExecutor{
		headers:  map[types.Hash]rpcclient.BlockHeader{h1: {Number: 1}},
		inherent: map[types.Hash]rpcclient.ParainherentData{h1: {}},
		session:  map[types.Hash]uint32{h1: 42},
	}
	c := New(Config{URL: "ws://node", MaxBlocks: 10}, exec, nil, testLog())
	paraQueue := c.SubscribeParachain(1)
	broadcastQueue := c.SubscribeBroadcast()

	require.NoError(t, c.handleNewBestHead(context.Background(), h1))

	ev, ok := paraQueue.Recv(context.Background())
	require.True(t, ok)
	session, ok := ev.(NewSession)
	require.True(t, ok)
	require.EqualValues(t, 42, session.Index)

	ev, ok = broadcastQueue.Recv(context.Background())
	require.True(t, ok)
	_, ok = ev.(NewSession)
	require.True(t, ok)
}

func TestRunEmitsTerminationOnContextCancel(t *testing.T) {
	queue := priochan.New[chainhead.Event](4, 1)
	c := New(Config{URL: "ws://node", MaxBlocks: 10}, &fakeExecutor{}, []*priochan.Chan[chainhead.Event]{queue}, testLog())
	paraQueue := c.SubscribeParachain(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	ev, ok := paraQueue.Recv(context.Background())
	require.True(t, ok)
	_, ok = ev.(Termination)
	require.True(t, ok)
}
