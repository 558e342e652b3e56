package gateway

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/vargos/pkg/protocol"
)

func TestDispatcher_RouteAndResolveRewritesID(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry, time.Second)

	callerConn, callerServer := dialTestConn(t)
	defer callerConn.Close()
	targetConn, targetServer := dialTestConn(t)
	defer targetConn.Close()

	caller := NewClient("caller", callerServer, 0, 0)
	target := NewClient("agent", targetServer, 0, 0)
	registry.Register("agent", target)

	req, _ := protocol.NewRequest("agent", "chat.send", map[string]string{"text": "hi"})
	if err := d.Route(caller, req); err != nil {
		t.Fatalf("route: %v", err)
	}

	// The target sees a forwarded request with a rewritten (internal) id.
	targetConn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := targetConn.ReadMessage()
	if err != nil {
		t.Fatalf("target read: %v", err)
	}
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	forwarded := frame.(*protocol.RequestFrame)
	if forwarded.ID == req.ID {
		t.Fatalf("dispatcher must rewrite the request id before forwarding")
	}

	// Service replies using the internal id; Resolve must translate it
	// back to the original caller's id.
	d.Resolve(protocol.NewOKResponse(forwarded.ID, map[string]string{"ok": "yes"}))

	callerConn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err = callerConn.ReadMessage()
	if err != nil {
		t.Fatalf("caller read: %v", err)
	}
	frame, err = protocol.DecodeFrame(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp := frame.(*protocol.ResponseFrame)
	if resp.ID != req.ID {
		t.Fatalf("resp.ID = %q, want original %q", resp.ID, req.ID)
	}
	if !resp.Ok {
		t.Fatalf("expected ok response")
	}
}

func TestDispatcher_UnregisteredTargetIsServiceUnavailable(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry, time.Second)

	callerConn, callerServer := dialTestConn(t)
	defer callerConn.Close()
	caller := NewClient("caller", callerServer, 0, 0)

	req, _ := protocol.NewRequest("missing", "do.thing", nil)
	d.Route(caller, req)

	callerConn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := callerConn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	frame, _ := protocol.DecodeFrame(data)
	resp := frame.(*protocol.ResponseFrame)
	if resp.Ok || resp.Error.Code != protocol.ErrServiceUnavailable {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %+v", resp)
	}
}

func TestDispatcher_TimeoutSurfacesToOrigin(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry, 20*time.Millisecond)

	callerConn, callerServer := dialTestConn(t)
	defer callerConn.Close()
	_, targetServer := dialTestConn(t)

	caller := NewClient("caller", callerServer, 0, 0)
	target := NewClient("agent", targetServer, 0, 0)
	registry.Register("agent", target)

	req, _ := protocol.NewRequest("agent", "chat.send", nil)
	d.Route(caller, req) // target never replies

	callerConn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := callerConn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	frame, _ := protocol.DecodeFrame(data)
	resp := frame.(*protocol.ResponseFrame)
	if resp.Ok || resp.Error.Code != protocol.ErrTimeout {
		t.Fatalf("expected TIMEOUT, got %+v", resp)
	}
}

func TestDispatcher_CancelForServiceFailsInFlightCalls(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry, time.Minute)

	callerConn, callerServer := dialTestConn(t)
	defer callerConn.Close()
	_, targetServer := dialTestConn(t)

	caller := NewClient("caller", callerServer, 0, 0)
	target := NewClient("agent", targetServer, 0, 0)
	registry.Register("agent", target)

	req, _ := protocol.NewRequest("agent", "chat.send", nil)
	d.Route(caller, req)

	d.CancelForService("agent")

	callerConn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := callerConn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	frame, _ := protocol.DecodeFrame(data)
	resp := frame.(*protocol.ResponseFrame)
	if resp.Ok || resp.Error.Code != protocol.ErrServiceUnavailable {
		t.Fatalf("expected SERVICE_UNAVAILABLE after cancel, got %+v", resp)
	}
}
