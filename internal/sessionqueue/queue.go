// Package sessionqueue is the only place an agent run is started or
// cancelled (spec §4.9). It owns, per session key, a FIFO of pending
// inputs and the session's queue-mode, and is the bridge between the
// inbound pipeline and the agent lifecycle.
package sessionqueue

import (
	"sync"

	"github.com/nextlevelbuilder/vargos/internal/bus"
)

// Mode controls how a new input interacts with an in-flight run.
type Mode string

const (
	ModeQueue     Mode = "queue"
	ModeInterrupt Mode = "interrupt"
	ModeReplace   Mode = "replace"
)

// Runner starts and cancels agent runs. sessionqueue depends on this
// narrow interface rather than the concrete lifecycle type so it can
// be unit tested without a real agent.
type Runner interface {
	// StartRun begins a new run for sessionKey with input. It must not
	// block; the run proceeds on its own goroutine and calls back into
	// the queue's Complete method when finished.
	StartRun(sessionKey string, input bus.NormalizedInput)
	// CancelRun gracefully cancels sessionKey's in-flight run, if any,
	// discarding any partial output not yet delivered, and blocks until
	// the run has fully stopped. It is a no-op if nothing is running.
	CancelRun(sessionKey string)
}

type session struct {
	mode    Mode
	pending []bus.NormalizedInput
	running bool
}

// Queue coordinates per-session FIFOs and run lifecycle transitions.
type Queue struct {
	mu       sync.Mutex
	sessions map[string]*session
	runner   Runner
}

// New builds a Queue that dispatches runs through runner.
func New(runner Runner) *Queue {
	return &Queue{sessions: make(map[string]*session), runner: runner}
}

// SetMode sets sessionKey's queue-mode for subsequent Enqueue calls. It
// defaults to ModeQueue if never set.
func (q *Queue) SetMode(sessionKey string, mode Mode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sessionLocked(sessionKey).mode = mode
}

func (q *Queue) sessionLocked(sessionKey string) *session {
	s, ok := q.sessions[sessionKey]
	if !ok {
		s = &session{mode: ModeQueue}
		q.sessions[sessionKey] = s
	}
	return s
}

// Enqueue admits a new input for sessionKey, applying that session's
// queue-mode (spec §4.9):
//   - queue: append; start a run now only if none is running.
//   - interrupt: cancel any in-flight run (its partial output is
//     discarded by the lifecycle, not here), then start fresh with
//     this input; previously queued-but-undelivered inputs stay queued.
//   - replace: cancel any in-flight run and drop every other pending
//     input for this session, then start fresh with only this input.
func (q *Queue) Enqueue(sessionKey string, input bus.NormalizedInput) {
	q.mu.Lock()
	s := q.sessionLocked(sessionKey)

	switch s.mode {
	case ModeInterrupt:
		wasRunning := s.running
		s.pending = append([]bus.NormalizedInput{input}, s.pending...)
		q.mu.Unlock()
		if wasRunning {
			// CancelRun blocks until the in-flight run has fully stopped
			// and its own Complete callback has already run, so running
			// is already false by the time control returns here.
			q.runner.CancelRun(sessionKey)
		}
		q.startNextLocked(sessionKey)

	case ModeReplace:
		wasRunning := s.running
		s.pending = []bus.NormalizedInput{input}
		q.mu.Unlock()
		if wasRunning {
			q.runner.CancelRun(sessionKey)
		}
		q.startNextLocked(sessionKey)

	default: // ModeQueue
		s.pending = append(s.pending, input)
		running := s.running
		q.mu.Unlock()
		if !running {
			q.startNextLocked(sessionKey)
		}
	}
}

// startNextLocked drains the head of sessionKey's queue and starts a
// run for it, if one isn't already running and the queue is non-empty.
// Despite the name it acquires the lock itself; callers must not be
// holding q.mu when calling it.
func (q *Queue) startNextLocked(sessionKey string) {
	q.mu.Lock()
	s := q.sessionLocked(sessionKey)
	if s.running || len(s.pending) == 0 {
		q.mu.Unlock()
		return
	}
	next := s.pending[0]
	s.pending = s.pending[1:]
	s.running = true
	q.mu.Unlock()

	q.runner.StartRun(sessionKey, next)
}

// Complete is the agent lifecycle's completion hook: when a run
// finishes in any terminal phase, it calls Complete so the queue can
// drain its next pending input, if any (spec §4.9/§4.10).
func (q *Queue) Complete(sessionKey string) {
	q.mu.Lock()
	s := q.sessionLocked(sessionKey)
	s.running = false
	q.mu.Unlock()

	q.startNextLocked(sessionKey)
}

// Pending returns a snapshot of sessionKey's queued (not yet running)
// inputs, for diagnostics/tests.
func (q *Queue) Pending(sessionKey string) []bus.NormalizedInput {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.sessionLocked(sessionKey)
	out := make([]bus.NormalizedInput, len(s.pending))
	copy(out, s.pending)
	return out
}

// IsRunning reports whether sessionKey currently has an active run.
func (q *Queue) IsRunning(sessionKey string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sessionLocked(sessionKey).running
}
