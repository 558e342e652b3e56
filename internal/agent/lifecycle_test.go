package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/vargos/internal/bus"
)

type fakeEvents struct {
	mu     sync.Mutex
	events []struct {
		source, event string
		payload        interface{}
	}
}

func (f *fakeEvents) Publish(source, event string, payload interface{}) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, struct {
		source, event string
		payload        interface{}
	}{source, event, payload})
	return int64(len(f.events)), nil
}

func (f *fakeEvents) phases() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		if m, ok := e.payload.(map[string]interface{}); ok && m["type"] == "phase" {
			out = append(out, m["phase"].(string))
		}
	}
	return out
}

type scriptedStreamer struct {
	deltas   []string
	toolCall *struct {
		name string
		args map[string]interface{}
	}
	fail      error
	blockTill chan struct{}
}

func (s *scriptedStreamer) Run(ctx context.Context, sessionKey string, systemPrompt string, input bus.NormalizedInput, cb StreamCallbacks) error {
	for _, d := range s.deltas {
		cb.OnDelta(d)
	}
	if s.toolCall != nil {
		cb.OnToolCall(s.toolCall.name, s.toolCall.args)
	}
	if s.blockTill != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.blockTill:
		}
	}
	return s.fail
}

type fakeTools struct {
	result string
	err    error
	called bool
}

func (f *fakeTools) InvokeTool(ctx context.Context, sessionKey, toolName string, args map[string]interface{}) (string, error) {
	f.called = true
	return f.result, f.err
}

func TestLifecycle_HappyPathPhaseSequence(t *testing.T) {
	events := &fakeEvents{}
	var gotOutcome Outcome
	done := make(chan struct{})

	lc := NewLifecycle(
		&scriptedStreamer{deltas: []string{"Hello", " world"}},
		&fakeTools{},
		events,
		func(sessionKey string, outcome Outcome) {
			gotOutcome = outcome
			close(done)
		},
		nil,
	)

	lc.StartRun("cli:alice", bus.NormalizedInput{Content: "hi"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not complete")
	}

	want := []string{"preparing", "running", "finalizing", "completed"}
	got := events.phases()
	if len(got) != len(want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phases = %v, want %v", got, want)
		}
	}
	if gotOutcome.Content != "Hello world" {
		t.Fatalf("outcome content = %q", gotOutcome.Content)
	}
	if gotOutcome.Err != nil {
		t.Fatalf("unexpected error: %v", gotOutcome.Err)
	}
}

func TestLifecycle_FailedStreamYieldsFailedPhase(t *testing.T) {
	events := &fakeEvents{}
	done := make(chan struct{})
	var gotOutcome Outcome

	lc := NewLifecycle(
		&scriptedStreamer{fail: errors.New("provider exploded")},
		&fakeTools{},
		events,
		func(sessionKey string, outcome Outcome) {
			gotOutcome = outcome
			close(done)
		},
		nil,
	)

	lc.StartRun("cli:alice", bus.NormalizedInput{Content: "hi"})
	<-done

	phases := events.phases()
	if phases[len(phases)-1] != "failed" {
		t.Fatalf("phases = %v, want last = failed", phases)
	}
	if gotOutcome.Err == nil {
		t.Fatalf("expected outcome error")
	}
}

func TestLifecycle_CancelRunBlocksUntilFinalized(t *testing.T) {
	events := &fakeEvents{}
	block := make(chan struct{})
	done := make(chan struct{})

	lc := NewLifecycle(
		&scriptedStreamer{blockTill: block},
		&fakeTools{},
		events,
		func(sessionKey string, outcome Outcome) { close(done) },
		nil,
	)

	lc.StartRun("cli:alice", bus.NormalizedInput{Content: "hi"})
	time.Sleep(20 * time.Millisecond) // let it reach running

	lc.CancelRun("cli:alice") // blocks until finalized

	select {
	case <-done:
	default:
		t.Fatalf("CancelRun returned before the run finished")
	}
}

func TestLifecycle_SubagentToolCallIsForbidden(t *testing.T) {
	events := &fakeEvents{}
	done := make(chan struct{})

	tools := &fakeTools{result: "ok"}

	lc := NewLifecycle(
		&scriptedStreamer{toolCall: &struct {
			name string
			args map[string]interface{}
		}{name: "sessions_spawn", args: map[string]interface{}{}}},
		tools,
		events,
		func(sessionKey string, outcome Outcome) { close(done) },
		nil,
	)

	lc.StartRun("agent:researcher:run-1", bus.NormalizedInput{Content: "spawn please"})
	<-done

	if tools.called {
		t.Fatalf("forbidden tool must never be invoked")
	}
}
