package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/vargos/internal/bootstrap"
	"github.com/nextlevelbuilder/vargos/internal/bus"
	"github.com/nextlevelbuilder/vargos/pkg/protocol"
)

// ErrRunCancelled is the distinguished error surfaced as a run's
// Outcome.Err when it is torn down by the session queue's
// interrupt/replace queue-modes (spec §4.9) rather than finishing or
// failing on its own. Carrying this sentinel instead of the raw
// ctx.Err() ("context canceled") gives the run.completed event and
// the session queue's completion hook a stable code to match on
// (spec §8 scenario 4: "run A transitions to failed with code
// CANCELLED").
var ErrRunCancelled = errors.New("CANCELLED")

// Phase is one state of the agent run state machine (spec §4.10).
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePreparing  Phase = "preparing"
	PhaseRunning    Phase = "running"
	PhaseFinalizing Phase = "finalizing"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// Outcome is the result handed to the session queue's completion hook
// and to reply delivery once a run leaves the finalizing phase.
type Outcome struct {
	RunID    string
	Content  string
	Err      error
	Warnings []string
}

// ToolInvoker dispatches a tool call through the Gateway RPC path and
// returns its result content (or an error). The lifecycle calls this
// for every `tool(call)` transition, after the TOOL_FORBIDDEN gate.
type ToolInvoker interface {
	InvokeTool(ctx context.Context, sessionKey, toolName string, args map[string]interface{}) (string, error)
}

// Streamer produces the assistant stream for one run: deltas, tool
// calls, and a final completion. A real implementation wraps an LLM
// provider call; tests substitute a scripted fake.
type Streamer interface {
	// Run drives one assistant turn, invoking the supplied callbacks in
	// order as the model produces output, and returns once the model has
	// finished (or ctx is cancelled). systemPrompt is the prompt
	// Lifecycle assembled for this run via BuildSystemPrompt during the
	// preparing phase (spec §4.10: "Build system prompt ... resolve
	// prompt mode").
	Run(ctx context.Context, sessionKey string, systemPrompt string, input bus.NormalizedInput, cb StreamCallbacks) error
}

// PromptInputs are the run-independent ingredients Lifecycle folds
// into every run's SystemPromptConfig. ToolNames is a func rather than
// a fixed slice because the tool registry it reads from is built once
// at boot but a run starts later, after every tool has registered.
type PromptInputs struct {
	AgentID   string
	Model     string
	Workspace string   // workspace root; also where bootstrap files are loaded from
	OwnerIDs  []string // union of every enabled channel's allow-list
	ToolNames func() []string
	HasMemory bool
	HasSpawn  bool
}

// StreamCallbacks are invoked by a Streamer as it produces output.
type StreamCallbacks struct {
	OnDelta      func(text string)
	OnToolCall   func(name string, args map[string]interface{}) (result string, err error)
	OnCompaction func()
}

// CompletionHook is called once a run reaches a terminal phase, so the
// session queue can drain its next pending input (spec §4.9).
type CompletionHook func(sessionKey string, outcome Outcome)

// EventPublisher is the narrow slice of the Gateway's event bus the
// lifecycle needs, to emit lifecycle/stream events.
type EventPublisher interface {
	Publish(source, event string, payload interface{}) (int64, error)
}

// run tracks one in-flight agent run.
type run struct {
	id         string
	sessionKey string
	phase      Phase
	toolLoop   toolLoopState
	cancel     context.CancelFunc
	done       chan struct{}
}

// Lifecycle drives the agent state machine for every session. One
// Lifecycle instance is shared across all sessions; per-run state is
// tracked in the runs map.
type Lifecycle struct {
	streamer Streamer
	tools    ToolInvoker
	events   EventPublisher
	onDone   CompletionHook
	log      *slog.Logger
	prompt   PromptInputs

	mu   sync.Mutex
	runs map[string]*run // keyed by sessionKey
}

// NewLifecycle builds a Lifecycle. onDone is invoked from the run's own
// goroutine once it reaches completed/failed.
func NewLifecycle(streamer Streamer, tools ToolInvoker, events EventPublisher, onDone CompletionHook, log *slog.Logger) *Lifecycle {
	if log == nil {
		log = slog.Default()
	}
	return &Lifecycle{streamer: streamer, tools: tools, events: events, onDone: onDone, log: log}
}

// SetPromptInputs configures the run-independent inputs used to build
// every run's system prompt. Safe to call once at boot, after the
// tool registry and workspace are known but before the first run
// starts; a Lifecycle with no inputs set still builds a (minimal)
// prompt, it just has no tools/context files/owner list to report.
func (l *Lifecycle) SetPromptInputs(p PromptInputs) {
	l.prompt = p
}

// StartRun implements sessionqueue.Runner: idle → preparing → running →
// finalizing → {completed|failed}.
func (l *Lifecycle) StartRun(sessionKey string, input bus.NormalizedInput) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:         uuid.NewString(),
		sessionKey: sessionKey,
		phase:      PhaseIdle,
		toolLoop:   toolLoopState{sessionKey: sessionKey},
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	l.mu.Lock()
	if l.runs == nil {
		l.runs = make(map[string]*run)
	}
	l.runs[sessionKey] = r
	l.mu.Unlock()

	go l.drive(ctx, r, input)
}

// CancelRun implements sessionqueue.Runner: it requests cooperative
// cancellation and blocks until the run has fully finalized, so the
// caller can safely start a replacement run immediately afterward
// (spec's interrupt/replace queue-modes).
func (l *Lifecycle) CancelRun(sessionKey string) {
	l.mu.Lock()
	r, ok := l.runs[sessionKey]
	l.mu.Unlock()
	if !ok {
		return
	}
	r.cancel()
	<-r.done
}

func (l *Lifecycle) drive(ctx context.Context, r *run, input bus.NormalizedInput) {
	defer close(r.done)
	defer l.finish(r)

	r.phase = PhasePreparing
	l.emitPhase(r)

	// preparing → running: build the system prompt and resolve main vs.
	// subagent prompt mode here, once per run, so there is exactly one
	// authoritative place this happens (spec §4.10's preparing-phase
	// "Build system prompt, load context files, resolve prompt mode").
	systemPrompt := l.buildSystemPrompt(r, input)

	r.phase = PhaseRunning
	l.emitPhase(r)
	l.emitSub(r, protocol.AgentEventRunStarted, map[string]string{"sessionKey": r.sessionKey})

	var (
		assistantText string
		warnings      []string
	)

	cb := StreamCallbacks{
		OnDelta: func(text string) {
			assistantText += text
			l.emitSub(r, protocol.AgentEventDelta, map[string]string{"text": text})
		},
		OnToolCall: func(name string, args map[string]interface{}) (string, error) {
			return l.handleToolCall(ctx, r, name, args)
		},
		OnCompaction: func() {
			l.emitSub(r, protocol.AgentEventCompaction, nil)
		},
	}

	runErr := l.streamer.Run(ctx, r.sessionKey, systemPrompt, input, cb)

	r.phase = PhaseFinalizing
	l.emitPhase(r)

	if ctx.Err() != nil {
		// cancel: mark failed, skip further deltas (already stopped since
		// Run has returned). Deltas already published as events stay
		// published, but the outcome carries no Content, so the partial
		// reply is neither stored nor sent to the channel. The outcome carries ErrRunCancelled rather than ctx.Err() so
		// run.completed reports the distinguished "CANCELLED" code instead
		// of the raw "context canceled" Go error string (spec §5/§8).
		if assistantText != "" {
			warnings = append(warnings, "run was cancelled after partial output was delivered")
		}
		l.complete(r, Outcome{RunID: r.id, Err: ErrRunCancelled, Warnings: warnings})
		return
	}

	if runErr != nil {
		l.complete(r, Outcome{RunID: r.id, Content: assistantText, Err: runErr})
		return
	}

	l.complete(r, Outcome{RunID: r.id, Content: assistantText, Warnings: warnings})
}

func (l *Lifecycle) handleToolCall(ctx context.Context, r *run, name string, args map[string]interface{}) (string, error) {
	l.emitSub(r, protocol.AgentEventTool, map[string]interface{}{"tool": name, "args": args})

	if IsToolForbidden(r.sessionKey, name) {
		return "", &protocol.ErrorPayload{Code: protocol.ErrToolForbidden, Message: fmt.Sprintf("tool %q is not available to subagent sessions", name)}
	}

	argsHash := r.toolLoop.record(name, args)
	result, err := l.tools.InvokeTool(ctx, r.sessionKey, name, args)
	if err == nil {
		r.toolLoop.recordResult(argsHash, result)
		if level, msg := r.toolLoop.detect(name, argsHash); level != "" {
			l.log.Warn("tool loop detected", "session", r.sessionKey, "tool", name, "level", level)
			if level == "critical" {
				// Fail the call the same way a TOOL_FORBIDDEN gate does —
				// through the wire error vocabulary (spec §7) — rather
				// than a bare Go error string with no code a caller could
				// match on.
				return result, &protocol.ErrorPayload{Code: protocol.ErrInternal, Message: msg}
			}
			result = result + "\n\n" + msg
		}
	}
	return result, err
}

// buildSystemPrompt assembles one run's system prompt from the
// Lifecycle's PromptInputs plus this run's own sessionKey/input: mode
// is resolved from IsSubagentSession, tool names are filtered through
// ForbiddenSubagentTools for a minimal-mode run so a subagent is never
// told about a tool it cannot call, and context files are loaded fresh
// from the workspace so edits to AGENTS.md/SOUL.md/etc. take effect on
// the very next run.
func (l *Lifecycle) buildSystemPrompt(r *run, input bus.NormalizedInput) string {
	cfg := SystemPromptConfig{
		AgentID:   l.prompt.AgentID,
		Model:     l.prompt.Model,
		Workspace: l.prompt.Workspace,
		Channel:   input.Source.Channel,
		OwnerIDs:  l.prompt.OwnerIDs,
		Mode:      PromptFull,
		HasMemory: l.prompt.HasMemory,
		HasSpawn:  l.prompt.HasSpawn,
	}
	if IsSubagentSession(r.sessionKey) {
		cfg.Mode = PromptMinimal
	}

	if l.prompt.ToolNames != nil {
		cfg.ToolNames = filterToolNames(l.prompt.ToolNames(), cfg.Mode == PromptMinimal)
	}

	if l.prompt.Workspace != "" {
		files := bootstrap.LoadWorkspaceFiles(l.prompt.Workspace)
		files = bootstrap.FilterForSession(files, r.sessionKey)
		cfg.ContextFiles = bootstrap.EmbedContextFiles(files)
	}

	return BuildSystemPrompt(cfg)
}

// filterToolNames drops the subagent-forbidden tools from names when
// minimal is true, so a minimal-mode prompt's ## Tooling section only
// lists what this run is actually allowed to call.
func filterToolNames(names []string, minimal bool) []string {
	if !minimal {
		return names
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, forbidden := ForbiddenSubagentTools[n]; forbidden {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (l *Lifecycle) complete(r *run, outcome Outcome) {
	if outcome.Err != nil {
		r.phase = PhaseFailed
	} else {
		r.phase = PhaseCompleted
	}
	l.emitPhase(r)
	l.emitSub(r, protocol.AgentEventRunComplete, map[string]interface{}{
		"runId": outcome.RunID, "error": errString(outcome.Err), "warnings": outcome.Warnings,
	})

	if l.onDone != nil {
		l.onDone(r.sessionKey, outcome)
	}
}

func (l *Lifecycle) finish(r *run) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.runs[r.sessionKey]; ok && cur == r {
		delete(l.runs, r.sessionKey)
	}
}

// emitPhase publishes the phase transition itself, under the "agent"
// topic with payload.type="phase".
func (l *Lifecycle) emitPhase(r *run) {
	if l.events == nil {
		return
	}
	l.events.Publish(r.sessionKey, protocol.EventAgent, map[string]interface{}{
		"type": "phase", "phase": string(r.phase), "runId": r.id,
	})
}

// emitSub publishes a stream sub-event (delta/tool/compaction/run.*)
// under the "agent" topic, discriminated by payload.type.
func (l *Lifecycle) emitSub(r *run, subtype string, payload interface{}) {
	if l.events == nil {
		return
	}
	body := map[string]interface{}{"type": subtype, "runId": r.id}
	if payload != nil {
		body["payload"] = payload
	}
	l.events.Publish(r.sessionKey, protocol.EventAgent, body)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
