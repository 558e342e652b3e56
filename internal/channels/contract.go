// Package channels defines the adapter contract every platform
// integration (Telegram, WhatsApp, Discord, CLI) implements, plus the
// shared BaseChannel bookkeeping (status, allow-list, rate limiting)
// adapters embed (spec §4.11).
package channels

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nextlevelbuilder/vargos/internal/bus"
)

// Status is a channel adapter's connection state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// InboundHandler receives a raw platform message once an adapter has
// stripped transport framing; it is the entry point into the inbound
// pipeline (spec §4.11/§4.12).
type InboundHandler func(raw bus.RawMessage)

// Channel is the contract every adapter implements. The Channel
// implementation is the single authority for its own Status()
// transitions: Start/Stop are the only methods that mutate status, and
// the interface has no status setter. BaseChannel keeps the status field
// unexported; adapters change it through BaseChannel.SetStatus.
type Channel interface {
	// Name identifies this channel ("telegram", "whatsapp", "discord", "cli").
	Name() string

	// Initialize performs one-time setup (e.g. loading auth state). It
	// must be idempotent — safe to call again after a failed Start.
	Initialize(ctx context.Context) error

	// Start connects and begins receiving. Status transitions
	// disconnected → connecting → connected.
	Start(ctx context.Context) error

	// Stop gracefully disconnects, flushing any in-flight sends before
	// returning. Status transitions to disconnected.
	Stop(ctx context.Context) error

	// Send delivers text to recipientID. Callers (reply delivery) retry
	// on error.
	Send(ctx context.Context, recipientID, text string) error

	// Status reports the adapter's current connection state.
	Status() Status

	// OnInboundMessage registers the callback invoked for every inbound
	// message this adapter accepts, after allow-list filtering.
	OnInboundMessage(handler InboundHandler)
}

// AllowList filters inbound senders before dedupe (spec §4.11). An
// empty list accepts everyone.
type AllowList struct {
	mu      sync.RWMutex
	allowed map[string]struct{}
}

// NewAllowList builds an AllowList from a set of sender ids. A nil or
// empty slice means "accept all".
func NewAllowList(ids []string) *AllowList {
	al := &AllowList{allowed: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		al.allowed[id] = struct{}{}
	}
	return al
}

// Allowed reports whether from is permitted. channel is accepted for
// interface-compatibility with inbound.AllowListChecker but unused: a
// Channel's allow-list only ever applies to its own traffic.
func (al *AllowList) Allowed(_, from string) bool {
	al.mu.RLock()
	defer al.mu.RUnlock()
	if len(al.allowed) == 0 {
		return true
	}
	_, ok := al.allowed[from]
	return ok
}

// BaseChannel holds the bookkeeping shared by every adapter: status,
// the registered inbound handler, and the allow-list. Adapters embed
// it and call its helpers from their own Start/Stop/handleMessage.
type BaseChannel struct {
	name      string
	status    atomic.Value // Status
	handler   atomic.Value // InboundHandler
	AllowList *AllowList
}

// NewBaseChannel builds a BaseChannel in the disconnected state.
func NewBaseChannel(name string, allowFrom []string) *BaseChannel {
	b := &BaseChannel{name: name, AllowList: NewAllowList(allowFrom)}
	b.status.Store(StatusDisconnected)
	return b
}

func (b *BaseChannel) Name() string { return b.name }

// Status returns the current connection state.
func (b *BaseChannel) Status() Status {
	return b.status.Load().(Status)
}

// SetStatus stores s as the current status. It is exported so adapters
// in their own packages can call it from their Start/Stop.
func (b *BaseChannel) SetStatus(s Status) { b.status.Store(s) }

// OnInboundMessage registers handler.
func (b *BaseChannel) OnInboundMessage(handler InboundHandler) {
	b.handler.Store(handler)
}

// Deliver checks raw.From against the allow-list and, if it is
// allowed, invokes the registered inbound handler, if any. Adapters
// call this from their platform event callback.
func (b *BaseChannel) Deliver(raw bus.RawMessage) {
	if !b.AllowList.Allowed(b.name, raw.From) {
		return
	}
	if h, ok := b.handler.Load().(InboundHandler); ok && h != nil {
		h(raw)
	}
}
