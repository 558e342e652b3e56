// Package inbound implements the single entry point every channel
// adapter's raw messages pass through before reaching the session
// queue: allow-list, dedupe, session-key resolution, debounce, and
// normalization (spec §4.12).
package inbound

import (
	"strings"
	"time"

	"github.com/nextlevelbuilder/vargos/internal/bus"
)

// SessionEnqueuer is the session queue's admission point. inbound
// depends on this narrow interface, not the concrete queue type.
type SessionEnqueuer interface {
	Enqueue(sessionKey string, input bus.NormalizedInput)
}

// AllowListChecker reports whether from is permitted to send on
// channel. An empty allow-list accepts everyone (spec §4.11).
type AllowListChecker interface {
	Allowed(channel, from string) bool
}

// Pipeline wires allow-list, dedupe, and debounce into the fixed
// five-step sequence spec §4.12 describes.
type Pipeline struct {
	allowList AllowListChecker
	dedupe    *bus.DedupeCache
	debounce  *bus.Debouncer[debounceItem]
	queue     SessionEnqueuer
	now       func() time.Time
}

type debounceItem struct {
	content string
	raw     bus.RawMessage
}

// Config bundles the collaborators a Pipeline needs.
type Config struct {
	AllowList    AllowListChecker
	Dedupe       *bus.DedupeCache
	Queue        SessionEnqueuer
	DebounceMs   time.Duration
	DebounceCap  int
	Now          func() time.Time
}

// New builds a Pipeline. Config.Now defaults to time.Now.
func New(cfg Config) *Pipeline {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	p := &Pipeline{
		allowList: cfg.AllowList,
		dedupe:    cfg.Dedupe,
		queue:     cfg.Queue,
		now:       now,
	}
	p.debounce = bus.NewDebouncer(cfg.DebounceMs, cfg.DebounceCap, p.flush)
	return p
}

// Accept runs one raw channel message through the full pipeline:
//  1. allow-list check (silent drop on mismatch)
//  2. fingerprint dedupe (silent drop on duplicate)
//  3. session key resolution
//  4. debounce push
//
// Step 5 (flush → normalize → enqueue) happens asynchronously from
// flush, once the debouncer's quiet period elapses or its batch cap
// is hit.
func (p *Pipeline) Accept(raw bus.RawMessage) {
	if p.allowList != nil && !p.allowList.Allowed(raw.Channel, raw.From) {
		return
	}

	fingerprint := raw.Fingerprint
	if fingerprint == "" {
		fingerprint = raw.Channel + ":" + contentHash(raw.Content)
	}
	if !p.dedupe.Add(fingerprint) {
		return
	}

	sessionKey := ResolveSessionKey(raw.Channel, raw.From)
	p.debounce.Push(sessionKey, debounceItem{content: raw.Content, raw: raw})
}

// flush is the debouncer's callback: it joins the buffered message
// contents with newlines into a single NormalizedInput and enqueues it.
func (p *Pipeline) flush(sessionKey string, items []debounceItem) {
	if len(items) == 0 {
		return
	}

	var texts []string
	for _, it := range items {
		texts = append(texts, it.content)
	}

	last := items[len(items)-1].raw
	input := bus.NormalizedInput{
		Type:      last.Type,
		Content:   strings.Join(texts, "\n"),
		Metadata:  last.Metadata,
		Source:    bus.InputSource{Channel: last.Channel, UserID: last.From, SessionKey: sessionKey},
		Timestamp: p.now(),
	}
	p.queue.Enqueue(sessionKey, input)
}

// ResolveSessionKey normalizes a channel + raw sender id into a stable
// sessionKey ("channel:userId"), stripping a leading "+" from
// phone-number-style sender ids and trimming whitespace (spec §4.12.3).
func ResolveSessionKey(channel, from string) string {
	userID := strings.TrimSpace(from)
	userID = strings.TrimPrefix(userID, "+")
	return channel + ":" + userID
}
