package gatewayclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/vargos/pkg/protocol"
)

// DefaultCallTimeout bounds how long Call waits for a correlated
// response before returning a client-side TIMEOUT error (spec §4.7).
const DefaultCallTimeout = 30 * time.Second

// pendingCall tracks one in-flight request awaiting its correlated
// response.
type pendingCall struct {
	resultCh chan *protocol.ResponseFrame
}

// RPCClient is the client side of the Gateway wire protocol: it owns a
// single WebSocket connection, writes frames serially (gorilla/websocket
// forbids concurrent writers on one conn), and correlates inbound
// ResponseFrames back to their originating Call by request id.
type RPCClient struct {
	writeMu sync.Mutex
	conn    *websocket.Conn

	mu      sync.Mutex
	pending map[string]*pendingCall

	events chan *protocol.EventFrame
	closed chan struct{}
	once   sync.Once
}

// NewRPCClient wraps an already-dialed WebSocket connection and starts
// its read pump. Callers own the connection's lifecycle up to Dial;
// Close tears down both the pump and the conn.
func NewRPCClient(conn *websocket.Conn) *RPCClient {
	c := &RPCClient{
		conn:    conn,
		pending: make(map[string]*pendingCall),
		events:  make(chan *protocol.EventFrame, 256),
		closed:  make(chan struct{}),
	}
	go c.readPump()
	return c
}

// Events returns the channel of inbound Event frames. Consumers must
// drain it; a full channel drops the oldest undelivered event rather
// than blocking the read pump indefinitely.
func (c *RPCClient) Events() <-chan *protocol.EventFrame {
	return c.events
}

func (c *RPCClient) readPump() {
	defer close(c.events)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.failAllPending(fmt.Errorf("connection closed: %w", err))
			return
		}

		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			continue // malformed frame from the peer; nothing to correlate
		}

		switch f := frame.(type) {
		case *protocol.ResponseFrame:
			c.deliver(f)
		case *protocol.EventFrame:
			select {
			case c.events <- f:
			default:
				// drop-oldest: make room for the newest event rather than
				// block the single reader goroutine on a slow consumer.
				select {
				case <-c.events:
				default:
				}
				select {
				case c.events <- f:
				default:
				}
			}
		}
	}
}

func (c *RPCClient) deliver(resp *protocol.ResponseFrame) {
	c.mu.Lock()
	call, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		return // response for a call that already timed out
	}
	call.resultCh <- resp
}

func (c *RPCClient) failAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, call := range c.pending {
		call.resultCh <- protocol.NewErrorResponse(id, protocol.ErrServiceUnavailable, err.Error())
		delete(c.pending, id)
	}
}

// Call sends a Request frame to target and blocks until the correlated
// Response arrives, ctx is done, or timeout elapses — whichever comes
// first. A timeout surfaces as a TIMEOUT ResponseFrame, matching what a
// server-side dispatcher timeout would look like, so callers only ever
// branch on ResponseFrame.Error.Code.
func (c *RPCClient) Call(ctx context.Context, target, method string, params interface{}, timeout time.Duration) (*protocol.ResponseFrame, error) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	req, err := protocol.NewRequest(target, method, params)
	if err != nil {
		return nil, err
	}

	call := &pendingCall{resultCh: make(chan *protocol.ResponseFrame, 1)}
	c.mu.Lock()
	c.pending[req.ID] = call
	c.mu.Unlock()

	if err := c.writeFrame(req); err != nil {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return nil, fmt.Errorf("write request frame: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-call.resultCh:
		return resp, nil
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return protocol.NewErrorResponse(req.ID, protocol.ErrTimeout, "no response within "+timeout.String()), nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return nil, ctx.Err()
	case <-c.closed:
		return nil, fmt.Errorf("rpc client closed")
	}
}

func (c *RPCClient) writeFrame(f interface{}) error {
	data, err := protocol.EncodeFrame(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close stops the read pump and closes the underlying connection. Safe
// to call more than once.
func (c *RPCClient) Close() error {
	c.once.Do(func() { close(c.closed) })
	return c.conn.Close()
}
