// Package store defines the SessionStore contract the Gateway is
// agnostic over (spec §1: "the Gateway is agnostic to whether sessions
// live in files, SQLite, or memory"), plus the default in-memory
// implementation used when no backend is configured.
//
// Session and SessionMessage mirror the data model in spec §3 exactly;
// this package adds no fields beyond what the spec names.
package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Kind is a Session's logical category (spec §3).
type Kind string

const (
	KindCLI      Kind = "cli"
	KindChannel  Kind = "channel"
	KindSubagent Kind = "subagent"
	KindCron     Kind = "cron"
)

// Role identifies who produced a SessionMessage (spec §3).
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ErrNotFound is returned by Get when sessionKey has no corresponding
// session. AppendMessage creates a missing session, and Delete of a
// missing session is not an error.
var ErrNotFound = errors.New("store: session not found")

// Session is the logical identity of one conversation (spec §3).
type Session struct {
	SessionKey string            `json:"sessionKey"`
	Kind       Kind              `json:"kind"`
	Label      string            `json:"label,omitempty"`
	AgentID    string            `json:"agentId,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// Message is one entry in a session's arrival-ordered history (spec §3).
type Message struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SessionStore persists Session records and their message history.
// Sessions are created on first inbound message or explicit RPC,
// mutated by AppendMessage and agent runs, and deleted only explicitly
// — never garbage-collected implicitly (spec §3 Lifecycles).
type SessionStore interface {
	// EnsureSession returns the session for key, creating it with kind
	// if it does not already exist.
	EnsureSession(ctx context.Context, key string, kind Kind) (*Session, error)
	// Get returns the session for key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Session, error)
	// List returns every known session, in no particular order.
	List(ctx context.Context) ([]*Session, error)
	// Delete removes a session and its history. Not an error if absent.
	Delete(ctx context.Context, key string) error

	// AppendMessage appends msg to key's history, creating the session
	// (kind KindChannel) if it doesn't exist, and bumps UpdatedAt.
	AppendMessage(ctx context.Context, key string, msg Message) error
	// History returns the most recent limit messages in arrival order.
	// limit <= 0 means "all".
	History(ctx context.Context, key string, limit int) ([]Message, error)
}

// memStore is the default in-process SessionStore: a single mutex
// guards a map of sessions, matching the teacher's preference for
// stdlib sync over a third-party cache when the data never leaves the
// process (see DESIGN.md).
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	history  map[string][]Message
	now      func() time.Time
}

// NewMemoryStore builds the in-memory default SessionStore.
func NewMemoryStore() SessionStore {
	return &memStore{
		sessions: make(map[string]*Session),
		history:  make(map[string][]Message),
		now:      time.Now,
	}
}

func (m *memStore) EnsureSession(_ context.Context, key string, kind Kind) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s, nil
	}
	now := m.now()
	s := &Session{SessionKey: key, Kind: kind, CreatedAt: now, UpdatedAt: now}
	m.sessions[key] = s
	return s, nil
}

func (m *memStore) Get(_ context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *memStore) List(_ context.Context) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	delete(m.history, key)
	return nil
}

func (m *memStore) AppendMessage(_ context.Context, key string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		now := m.now()
		s = &Session{SessionKey: key, Kind: KindChannel, CreatedAt: now, UpdatedAt: now}
		m.sessions[key] = s
	}
	s.UpdatedAt = m.now()
	m.history[key] = append(m.history[key], msg)
	return nil
}

func (m *memStore) History(_ context.Context, key string, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.history[key]
	if limit <= 0 || limit >= len(all) {
		out := make([]Message, len(all))
		copy(out, all)
		return out, nil
	}
	out := make([]Message, limit)
	copy(out, all[len(all)-limit:])
	return out, nil
}
