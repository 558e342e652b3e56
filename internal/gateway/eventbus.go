package gateway

import (
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/vargos/pkg/protocol"
)

// EventBus implements topic-based publish/subscribe with per-source
// monotonic sequence numbers (spec §4.8). A topic is the pair
// (source, event); a client subscribes to topics named in its
// ServiceRegistration.subscriptions at connection time.
type EventBus struct {
	mu         sync.Mutex
	seqBySrc   map[string]int64
	subsByTop  map[string]map[*Client]struct{}
	dropClient func(c *Client, reason string)
}

// NewEventBus builds an EventBus. dropClient is invoked (from the
// publishing goroutine, so it must not block) when a subscriber's
// outbound queue is past its high-water mark; the server wires this to
// close the connection and let the peer reconnect.
func NewEventBus(dropClient func(c *Client, reason string)) *EventBus {
	return &EventBus{
		seqBySrc:   make(map[string]int64),
		subsByTop:  make(map[string]map[*Client]struct{}),
		dropClient: dropClient,
	}
}

func topicKey(source, event string) string {
	return source + "\x00" + event
}

// Subscribe records client's interest in (source, event).
func (b *EventBus) Subscribe(client *Client, source, event string) {
	key := topicKey(source, event)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subsByTop[key] == nil {
		b.subsByTop[key] = make(map[*Client]struct{})
	}
	b.subsByTop[key][client] = struct{}{}
	client.Subscribe(key)
}

// Unsubscribe removes client's interest in (source, event).
func (b *EventBus) Unsubscribe(client *Client, source, event string) {
	key := topicKey(source, event)
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subsByTop[key], client)
	client.Unsubscribe(key)
}

// RemoveClient drops client from every topic it had subscribed to,
// called on disconnect.
func (b *EventBus) RemoveClient(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subsByTop {
		delete(subs, client)
	}
}

// Publish assigns the next sequence number for source and fans the
// event out to every subscriber of (source, event). Per-topic ordering
// for a single subscriber is preserved because seq assignment and
// fan-out happen under the same lock and Client.Enqueue preserves FIFO
// order on its outbound queue; there is no ordering guarantee between
// different subscribers. A subscriber whose queue is past its
// high-water mark is dropped rather than allowed to stall publish.
func (b *EventBus) Publish(source, event string, payload interface{}) (int64, error) {
	b.mu.Lock()
	b.seqBySrc[source]++
	seq := b.seqBySrc[source]
	frame, err := protocol.NewEvent(source, event, payload, seq)
	if err != nil {
		b.mu.Unlock()
		return 0, fmt.Errorf("encode event payload: %w", err)
	}

	var dropped []*Client
	for c := range b.subsByTop[topicKey(source, event)] {
		if !c.Enqueue(frame) {
			dropped = append(dropped, c)
		}
	}
	b.mu.Unlock()

	for _, c := range dropped {
		b.RemoveClient(c)
		if b.dropClient != nil {
			b.dropClient(c, "event queue exceeded high-water mark")
		}
	}
	return seq, nil
}
