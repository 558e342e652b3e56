package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/vargos/internal/bus"
	"github.com/nextlevelbuilder/vargos/internal/store"
)

// SessionsToolset implements the four tools spec §4.10 denies to
// subagent sessions: sessions_list, sessions_history, sessions_send,
// sessions_spawn. They are registered like any other tool; the
// TOOL_FORBIDDEN gate in internal/agent is what actually keeps
// subagent runs from reaching them (agent.ForbiddenSubagentTools), not
// anything in this package.
type SessionsToolset struct {
	store store.SessionStore
	queue SessionEnqueuer
}

// SessionEnqueuer is the narrow slice of sessionqueue.Queue this
// toolset needs to hand a new input to another session.
type SessionEnqueuer interface {
	Enqueue(sessionKey string, input bus.NormalizedInput)
}

// NewSessionsToolset builds a SessionsToolset over store and queue.
func NewSessionsToolset(st store.SessionStore, queue SessionEnqueuer) *SessionsToolset {
	return &SessionsToolset{store: st, queue: queue}
}

// Register adds all four session tools to r.
func (s *SessionsToolset) Register(r *Registry) {
	r.MustRegister(Tool{
		Name:        "sessions_list",
		Description: "List known sessions",
		Schema:      map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		Run:         s.list,
	})
	r.MustRegister(Tool{
		Name:        "sessions_history",
		Description: "Fetch message history for a session",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"sessionKey": map[string]interface{}{"type": "string"},
				"limit":      map[string]interface{}{"type": "integer", "description": "max messages to return: the most recent ones, oldest first (0 = all)"},
			},
			"required": []string{"sessionKey"},
		},
		Run: s.history,
	})
	r.MustRegister(Tool{
		Name:        "sessions_send",
		Description: "Send a message into another session's inbound queue",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"sessionKey": map[string]interface{}{"type": "string"},
				"content":    map[string]interface{}{"type": "string"},
			},
			"required": []string{"sessionKey", "content"},
		},
		Run: s.send,
	})
	r.MustRegister(Tool{
		Name:        "sessions_spawn",
		Description: "Spawn a subagent session and send it an initial task message",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"label":   map[string]interface{}{"type": "string", "description": "short name for this subagent run"},
				"content": map[string]interface{}{"type": "string", "description": "initial task message"},
			},
			"required": []string{"content"},
		},
		Run: s.spawn,
	})
}

func (s *SessionsToolset) list(ctx context.Context, _ string, _ map[string]interface{}) (string, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return "no sessions", nil
	}
	var lines []string
	for _, sess := range sessions {
		lines = append(lines, fmt.Sprintf("%s (%s)", sess.SessionKey, sess.Kind))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *SessionsToolset) history(ctx context.Context, _ string, args map[string]interface{}) (string, error) {
	sessionKey, _ := args["sessionKey"].(string)
	if sessionKey == "" {
		return "", fmt.Errorf("sessionKey is required")
	}
	limit := 0
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}

	messages, err := s.store.History(ctx, sessionKey, limit)
	if err != nil {
		return "", fmt.Errorf("history for %s: %w", sessionKey, err)
	}
	if len(messages) == 0 {
		return "no history", nil
	}
	var lines []string
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", m.Timestamp.Format("2006-01-02 15:04:05"), m.Role, m.Content))
	}
	return strings.Join(lines, "\n"), nil
}

func (s *SessionsToolset) send(_ context.Context, _ string, args map[string]interface{}) (string, error) {
	sessionKey, _ := args["sessionKey"].(string)
	content, _ := args["content"].(string)
	if sessionKey == "" || content == "" {
		return "", fmt.Errorf("sessionKey and content are required")
	}

	s.queue.Enqueue(sessionKey, bus.NormalizedInput{
		Type:    bus.InputText,
		Content: content,
		Source:  bus.InputSource{Channel: "agent", SessionKey: sessionKey},
	})
	return fmt.Sprintf("sent to %s", sessionKey), nil
}

func (s *SessionsToolset) spawn(_ context.Context, callerSessionKey string, args map[string]interface{}) (string, error) {
	label, _ := args["label"].(string)
	content, _ := args["content"].(string)
	if content == "" {
		return "", fmt.Errorf("content is required")
	}
	if label == "" {
		label = uuid.NewString()[:8]
	}

	sessionKey := fmt.Sprintf("agent:%s:subagent:%s", callerSessionKey, label)
	s.queue.Enqueue(sessionKey, bus.NormalizedInput{
		Type:    bus.InputText,
		Content: content,
		Source:  bus.InputSource{Channel: "agent", SessionKey: sessionKey},
	})
	return fmt.Sprintf("spawned subagent session %s", sessionKey), nil
}
