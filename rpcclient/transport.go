package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/chainwatch/paratracer/internal/errs"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcNotification struct {
	Method string `json:"method"`
	Params struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

// conn is a single JSON-RPC-over-websocket connection, shared safely
// across concurrent callers per the Request Executor's "per-call
// concurrency on a single client must be safe" contract.
type conn struct {
	url    string
	ws     *websocket.Conn
	log    *logrus.Entry
	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan rpcResponse
	subs    map[string]chan json.RawMessage

	closeOnce sync.Once
	closed    chan struct{}
}

func dial(url string, log *logrus.Entry) (*conn, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", errs.Transport, url, err)
	}
	c := &conn{
		url:     url,
		ws:      ws,
		log:     log.WithField("url", url),
		pending: make(map[uint64]chan rpcResponse),
		subs:    make(map[string]chan json.RawMessage),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *conn) readLoop() {
	defer close(c.closed)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.log.WithError(err).Debug("websocket read loop ended")
			c.mu.Lock()
			for _, ch := range c.pending {
				close(ch)
			}
			c.pending = nil
			for _, ch := range c.subs {
				close(ch)
			}
			c.subs = nil
			c.mu.Unlock()
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err == nil && resp.ID != 0 {
			c.mu.Lock()
			ch, ok := c.pending[resp.ID]
			if ok {
				delete(c.pending, resp.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- resp
			}
			continue
		}

		var notif rpcNotification
		if err := json.Unmarshal(data, &notif); err == nil && notif.Params.Subscription != "" {
			c.mu.Lock()
			ch, ok := c.subs[notif.Params.Subscription]
			c.mu.Unlock()
			if ok {
				ch <- notif.Params.Result
			}
		}
	}
}

// call issues a request and blocks for its response or ctx cancellation.
func (c *conn) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	respCh := make(chan rpcResponse, 1)

	c.mu.Lock()
	c.pending[id] = respCh
	c.mu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", errs.Decode, err)
	}

	c.mu.Lock()
	writeErr := c.ws.WriteMessage(websocket.TextMessage, payload)
	c.mu.Unlock()
	if writeErr != nil {
		return nil, fmt.Errorf("%w: write request: %v", errs.Transport, writeErr)
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return nil, fmt.Errorf("%w: connection closed awaiting response", errs.Transport)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("%w: rpc error %d: %s", errs.Transport, resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, fmt.Errorf("%w: connection closed awaiting response", errs.Transport)
	}
}

// subscribe issues a subscription request and registers a notification
// channel keyed by the returned subscription id.
func (c *conn) subscribe(ctx context.Context, method string, params any) (string, <-chan json.RawMessage, error) {
	raw, err := c.call(ctx, method, params)
	if err != nil {
		return "", nil, err
	}
	var subID string
	if err := json.Unmarshal(raw, &subID); err != nil {
		return "", nil, fmt.Errorf("%w: subscription id: %v", errs.Decode, err)
	}

	ch := make(chan json.RawMessage, 64)
	c.mu.Lock()
	c.subs[subID] = ch
	c.mu.Unlock()

	return subID, ch, nil
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		_ = c.ws.Close()
	})
}

// Pool caches one conn per URL, dialing lazily on first use.
type Pool struct {
	cache *lru.Cache[string, *conn]
	log   *logrus.Entry
}

// NewPool creates a connection pool bounded to size distinct endpoints.
func NewPool(size int, log *logrus.Entry) (*Pool, error) {
	cache, err := lru.NewWithEvict[string, *conn](size, func(_ string, c *conn) { c.close() })
	if err != nil {
		return nil, err
	}
	return &Pool{cache: cache, log: log}, nil
}

// Get returns the cached connection for url, dialing one if absent.
func (p *Pool) Get(url string) (*conn, error) {
	if c, ok := p.cache.Get(url); ok {
		return c, nil
	}
	c, err := dial(url, p.log)
	if err != nil {
		return nil, err
	}
	p.cache.Add(url, c)
	return c, nil
}
