package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/vargos/internal/bus"
	"github.com/nextlevelbuilder/vargos/internal/store"
)

type fakeEnqueuer struct {
	calls []struct {
		sessionKey string
		input      bus.NormalizedInput
	}
}

func (f *fakeEnqueuer) Enqueue(sessionKey string, input bus.NormalizedInput) {
	f.calls = append(f.calls, struct {
		sessionKey string
		input      bus.NormalizedInput
	}{sessionKey, input})
}

func TestSessionsToolsetListAndHistory(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	_, _ = st.EnsureSession(ctx, "cli:local", store.KindCLI)
	_ = st.AppendMessage(ctx, "cli:local", store.Message{Role: store.RoleUser, Content: "hi"})

	r := NewRegistry()
	NewSessionsToolset(st, &fakeEnqueuer{}).Register(r)

	out, err := r.InvokeTool(ctx, "cli:local", "sessions_list", nil)
	if err != nil {
		t.Fatalf("sessions_list: %v", err)
	}
	if !strings.Contains(out, "cli:local") {
		t.Fatalf("sessions_list = %q, want it to mention cli:local", out)
	}

	out, err = r.InvokeTool(ctx, "cli:local", "sessions_history", map[string]interface{}{"sessionKey": "cli:local"})
	if err != nil {
		t.Fatalf("sessions_history: %v", err)
	}
	if !strings.Contains(out, "hi") {
		t.Fatalf("sessions_history = %q, want it to include the message", out)
	}
}

func TestSessionsToolsetSendEnqueues(t *testing.T) {
	enq := &fakeEnqueuer{}
	r := NewRegistry()
	NewSessionsToolset(store.NewMemoryStore(), enq).Register(r)

	if _, err := r.InvokeTool(context.Background(), "cli:local", "sessions_send", map[string]interface{}{
		"sessionKey": "telegram:99", "content": "ping",
	}); err != nil {
		t.Fatalf("sessions_send: %v", err)
	}
	if len(enq.calls) != 1 || enq.calls[0].sessionKey != "telegram:99" || enq.calls[0].input.Content != "ping" {
		t.Fatalf("enqueue calls = %+v", enq.calls)
	}
}

func TestSessionsToolsetSpawnBuildsSubagentSessionKey(t *testing.T) {
	enq := &fakeEnqueuer{}
	r := NewRegistry()
	NewSessionsToolset(store.NewMemoryStore(), enq).Register(r)

	out, err := r.InvokeTool(context.Background(), "telegram:99", "sessions_spawn", map[string]interface{}{
		"label": "research", "content": "go find X",
	})
	if err != nil {
		t.Fatalf("sessions_spawn: %v", err)
	}
	if !strings.Contains(out, "agent:telegram:99:subagent:research") {
		t.Fatalf("sessions_spawn = %q, want the subagent session key", out)
	}
	if len(enq.calls) != 1 || !strings.Contains(enq.calls[0].sessionKey, "subagent:research") {
		t.Fatalf("enqueue calls = %+v", enq.calls)
	}
}

func TestSessionsToolsetHistoryRequiresSessionKey(t *testing.T) {
	r := NewRegistry()
	NewSessionsToolset(store.NewMemoryStore(), &fakeEnqueuer{}).Register(r)
	if _, err := r.InvokeTool(context.Background(), "cli:local", "sessions_history", nil); err == nil {
		t.Fatal("sessions_history with no sessionKey succeeded, want an error")
	}
}
