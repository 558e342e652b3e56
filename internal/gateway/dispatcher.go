package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/vargos/pkg/protocol"
)

// DefaultDispatchTimeout bounds how long the Gateway waits for a
// routed request's response before surfacing TIMEOUT to the caller
// (spec §4.7).
const DefaultDispatchTimeout = 30 * time.Second

// pendingRoute tracks one request the Dispatcher forwarded to a target
// service, so the eventual response can be routed back to whichever
// client actually asked for it.
type pendingRoute struct {
	origin     *Client
	originalID string
	service    string
	timer      *time.Timer
}

// Dispatcher routes RequestFrames from any connected client to the
// service registered to handle them, and correlates the resulting
// ResponseFrame back to the original caller (spec §4.7). It rewrites
// the request id to a fresh internal id so that two different clients
// calling the same target concurrently can never collide, while the
// original caller's id is restored on the way back.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration

	mu      sync.Mutex
	pending map[string]*pendingRoute
}

// NewDispatcher builds a Dispatcher bound to registry. timeout <= 0
// uses DefaultDispatchTimeout.
func NewDispatcher(registry *Registry, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &Dispatcher{registry: registry, timeout: timeout, pending: make(map[string]*pendingRoute)}
}

// Route forwards req to the service named req.Target on behalf of
// origin. It returns immediately; the correlated response, once it
// arrives via Resolve, is delivered to origin directly. If the target
// service isn't registered, a SERVICE_UNAVAILABLE response is enqueued
// on origin immediately and Route returns nil (there is nothing further
// to await).
func (d *Dispatcher) Route(origin *Client, req *protocol.RequestFrame) error {
	target, ok := d.registry.Lookup(req.Target)
	if !ok {
		origin.Enqueue(protocol.NewErrorResponse(req.ID, protocol.ErrServiceUnavailable,
			fmt.Sprintf("service %q is not registered", req.Target)))
		return nil
	}

	internalID := uuid.NewString()
	route := &pendingRoute{origin: origin, originalID: req.ID, service: req.Target}

	d.mu.Lock()
	d.pending[internalID] = route
	d.mu.Unlock()

	route.timer = time.AfterFunc(d.timeout, func() { d.timeoutRoute(internalID) })

	forwarded := &protocol.RequestFrame{
		Type:   protocol.FrameRequest,
		ID:     internalID,
		Target: req.Target,
		Method: req.Method,
		Params: req.Params,
	}
	if !target.Enqueue(forwarded) {
		d.mu.Lock()
		delete(d.pending, internalID)
		d.mu.Unlock()
		route.timer.Stop()
		origin.Enqueue(protocol.NewErrorResponse(req.ID, protocol.ErrBackpressure,
			fmt.Sprintf("service %q's inbound queue is full", req.Target)))
	}
	return nil
}

// Resolve is called by the server's read loop when a service connection
// produces a ResponseFrame. It rewrites resp.ID back to the original
// caller's id and delivers it to that caller.
func (d *Dispatcher) Resolve(resp *protocol.ResponseFrame) {
	d.mu.Lock()
	route, ok := d.pending[resp.ID]
	if ok {
		delete(d.pending, resp.ID)
	}
	d.mu.Unlock()

	if !ok {
		return // late response for an already-timed-out or unknown call
	}
	route.timer.Stop()

	out := *resp
	out.ID = route.originalID
	route.origin.Enqueue(&out)
}

func (d *Dispatcher) timeoutRoute(internalID string) {
	d.mu.Lock()
	route, ok := d.pending[internalID]
	if ok {
		delete(d.pending, internalID)
	}
	d.mu.Unlock()

	if !ok {
		return
	}
	route.origin.Enqueue(protocol.NewErrorResponse(route.originalID, protocol.ErrTimeout,
		fmt.Sprintf("service %q did not respond in time", route.service)))
}

// CancelForService fails every pending route addressed to service with
// SERVICE_UNAVAILABLE — called when that service disconnects, so its
// in-flight callers aren't left waiting out the full timeout.
func (d *Dispatcher) CancelForService(service string) {
	d.mu.Lock()
	var toFail []*pendingRoute
	for id, route := range d.pending {
		if route.service == service {
			toFail = append(toFail, route)
			delete(d.pending, id)
		}
	}
	d.mu.Unlock()

	for _, route := range toFail {
		route.timer.Stop()
		route.origin.Enqueue(protocol.NewErrorResponse(route.originalID, protocol.ErrServiceUnavailable,
			fmt.Sprintf("service %q disconnected", service)))
	}
}
