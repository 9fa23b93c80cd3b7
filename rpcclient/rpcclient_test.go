package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/chainwatch/paratracer/chainhead"
	"github.com/chainwatch/paratracer/internal/retry"
)

// fakeNode is a minimal JSON-RPC-over-websocket server standing in for a
// relay node, enough to exercise conn/Pool/Executor/Dialer end to end.
type fakeNode struct {
	upgrader websocket.Upgrader
	handler  func(method string, params json.RawMessage) (any, error)
}

func newFakeNode(handler func(method string, params json.RawMessage) (any, error)) *httptest.Server {
	n := &fakeNode{handler: handler}
	return httptest.NewServer(http.HandlerFunc(n.serve))
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var req rpcRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		paramsRaw, _ := json.Marshal(req.Params)
		result, handlerErr := n.handler(req.Method, paramsRaw)

		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
		if handlerErr != nil {
			resp.Error = &rpcError{Code: -1, Message: handlerErr.Error()}
		} else {
			raw, _ := json.Marshal(result)
			resp.Result = raw
		}
		payload, _ := json.Marshal(resp)
		if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func fastRetry() retry.Options {
	return retry.Options{MaxRetries: 3, BaseDelay: time.Millisecond, ExponentialFactor: 1, MaxDelay: 5 * time.Millisecond}
}

func TestExecutorGetHostConfigurationRoundTrips(t *testing.T) {
	srv := newFakeNode(func(method string, params json.RawMessage) (any, error) {
		require.Equal(t, "state_call", method)
		return HostConfiguration{NeededApprovals: 30, NoShowSlots: 2, NDelayTranches: 89}, nil
	})
	defer srv.Close()

	exec, err := NewExecutor(4, fastRetry(), testLog())
	require.NoError(t, err)

	conf, err := exec.GetHostConfiguration(context.Background(), wsURL(srv))
	require.NoError(t, err)
	require.EqualValues(t, 30, conf.NeededApprovals)
	require.EqualValues(t, 2, conf.NoShowSlots)
}

func TestExecutorRetriesOnTransportErrorThenSucceeds(t *testing.T) {
	attempts := 0
	srv := newFakeNode(func(method string, params json.RawMessage) (any, error) {
		attempts++
		if attempts < 2 {
			return nil, fmt.Errorf("transient failure")
		}
		return uint32(7), nil
	})
	defer srv.Close()

	exec, err := NewExecutor(2, fastRetry(), testLog())
	require.NoError(t, err)

	idx, err := exec.GetSessionIndex(context.Background(), wsURL(srv), types.Hash{})
	require.NoError(t, err)
	require.EqualValues(t, 7, idx)
	require.GreaterOrEqual(t, attempts, 2)
}

func TestPoolReusesConnectionPerURL(t *testing.T) {
	srv := newFakeNode(func(method string, params json.RawMessage) (any, error) {
		return uint32(1), nil
	})
	defer srv.Close()

	pool, err := NewPool(2, testLog())
	require.NoError(t, err)

	c1, err := pool.Get(wsURL(srv))
	require.NoError(t, err)
	c2, err := pool.Get(wsURL(srv))
	require.NoError(t, err)
	require.Same(t, c1, c2)
}

func TestDecodeFollowEventVariants(t *testing.T) {
	best := types.Hash{1, 2, 3}
	ev, err := decodeFollowEvent(wireFollowEvent{Event: "bestBlockChanged", BestBlockHash: best})
	require.NoError(t, err)
	require.Equal(t, best, ev.BestBlockHash)

	finalized := []types.Hash{{4}, {5}}
	ev, err = decodeFollowEvent(wireFollowEvent{Event: "finalized", FinalizedBlockHashes: finalized})
	require.NoError(t, err)
	require.Equal(t, finalized, ev.FinalizedBlockHashes)

	ev, err = decodeFollowEvent(wireFollowEvent{Event: "stop"})
	require.NoError(t, err)
	require.Equal(t, chainhead.FollowStop, ev.Kind)

	_, err = decodeFollowEvent(wireFollowEvent{Event: "unknown-thing"})
	require.Error(t, err)
}
