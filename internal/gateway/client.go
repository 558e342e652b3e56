package gateway

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/vargos/pkg/protocol"
)

// Defaults for a connected Client's outbound queue (spec §5 concurrency
// model: event bus backpressure).
const (
	DefaultSubscriberQueueSize     = 256
	DefaultSubscriberHighWaterMark = 200
)

// Client is the Gateway's server-side handle on one connected
// WebSocket peer — a service, a channel adapter, or a CLI session.
// Every outbound frame (RPC response or broadcast event) is queued
// here and drained by a single writer goroutine, since gorilla's
// websocket.Conn forbids concurrent writers.
type Client struct {
	ID      string
	Name    string // registered service name, if any; "" for unregistered peers
	conn    *websocket.Conn
	highWM  int
	queue   chan []byte
	closeCh chan struct{}
	once    sync.Once

	mu     sync.Mutex
	topics map[string]struct{}
}

// NewClient wraps conn with a bounded outbound queue. queueSize and
// highWaterMark fall back to the package defaults when <= 0.
func NewClient(id string, conn *websocket.Conn, queueSize, highWaterMark int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultSubscriberQueueSize
	}
	if highWaterMark <= 0 {
		highWaterMark = DefaultSubscriberHighWaterMark
	}
	c := &Client{
		ID:      id,
		conn:    conn,
		highWM:  highWaterMark,
		queue:   make(chan []byte, queueSize),
		closeCh: make(chan struct{}),
		topics:  make(map[string]struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *Client) writeLoop() {
	for {
		select {
		case data, ok := <-c.queue:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// Enqueue attempts to queue a frame for delivery. It returns false
// without blocking when the queue is past its high-water mark — the
// caller (event bus or dispatcher) must then disconnect this client
// rather than let a slow reader stall the whole system (spec's
// BACKPRESSURE invariant).
func (c *Client) Enqueue(frame interface{}) bool {
	data, err := protocol.EncodeFrame(frame)
	if err != nil {
		return false
	}
	if len(c.queue) >= c.highWM {
		return false
	}
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

// Subscribe records topic as one this client wants delivered.
func (c *Client) Subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics[topic] = struct{}{}
}

// Unsubscribe removes topic.
func (c *Client) Unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.topics, topic)
}

// Subscribes reports whether this client wants topic.
func (c *Client) Subscribes(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.topics[topic]
	return ok
}

// ReadMessage proxies the underlying connection's reader.
func (c *Client) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

// Close stops the writer goroutine and closes the connection. Safe to
// call more than once.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.closeCh) })
	return c.conn.Close()
}
