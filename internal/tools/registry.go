// Package tools implements the agent's tool surface: file, shell, web,
// memory, and cron tools (spec §1), registered as explicit
// {name, description, schema, run} records per spec §9's design note
// rather than discovered by reflection. Registry implements
// agent.ToolInvoker directly — tools live in the same process as the
// agent lifecycle, so invocation never needs a wire hop through the
// Gateway's WebSocket transport (that transport is reserved for
// out-of-process services per spec §1/§4.6).
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/vargos/pkg/protocol"
)

// Tool is one agent-invocable capability: a name, a human-readable
// description, a JSON-schema-shaped parameter spec for the model, and
// the function that actually runs it. Matches the teacher's
// Name()/Description()/Parameters()/Execute() tool shape, flattened
// into a constructed record rather than an interface, per spec §9's
// explicit-constructor design note.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]interface{}
	Run         func(ctx context.Context, sessionKey string, args map[string]interface{}) (string, error)
}

// Registry holds every tool the agent may call, keyed by name.
// Registration fails on a duplicate name, mirroring the Gateway
// service registry's ALREADY_REGISTERED discipline (spec §4.6).
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry builds an empty tool Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t to the registry. Returns an error if t.Name is
// already registered.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q is already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// MustRegister panics if Register fails; used at boot for the fixed
// built-in tool set, where a duplicate name is a programming error.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Names returns every registered tool name, for system-prompt tool
// listing (internal/agent.SystemPromptConfig.ToolNames).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	return names
}

// Describe returns the {name, description, schema} triples for every
// registered tool, for handing to an LLM provider's tool-use API.
func (r *Registry) Describe() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// InvokeTool implements agent.ToolInvoker. The TOOL_FORBIDDEN gate runs
// in the lifecycle before this is ever called (spec §4.10); an unknown
// tool name here is a SERVICE_UNAVAILABLE, matching how the Gateway's
// own RPC dispatcher treats an unregistered target (spec §4.7).
func (r *Registry) InvokeTool(ctx context.Context, sessionKey, toolName string, args map[string]interface{}) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[toolName]
	r.mu.RUnlock()
	if !ok {
		return "", protocol.NewError(protocol.ErrServiceUnavailable, fmt.Sprintf("tool %q is not registered", toolName), nil)
	}
	return t.Run(ctx, sessionKey, args)
}
