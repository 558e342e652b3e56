package agent

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/vargos/internal/bus"
)

// EchoStreamer is a minimal Streamer that emits the input content back
// as a single delta. Concrete LLM provider wire formats are out of
// scope for this Gateway (spec §1's Out-of-scope list); this stand-in
// lets `vargos serve`/`vargos chat` run the full lifecycle state
// machine end-to-end — including system prompt assembly — without a
// provider wired in, exactly the way the lifecycle's own tests
// substitute a scripted fake Streamer.
type EchoStreamer struct{}

// Run implements Streamer. It logs the system prompt Lifecycle built
// for this run (a real provider would send it as the first message of
// the conversation) and echoes input.Content as a single delta.
func (EchoStreamer) Run(ctx context.Context, sessionKey string, systemPrompt string, input bus.NormalizedInput, cb StreamCallbacks) error {
	slog.Debug("echo streamer run", "session", sessionKey, "systemPromptLen", len(systemPrompt))
	cb.OnDelta(input.Content)
	return nil
}
