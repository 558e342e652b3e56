package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/vargos/internal/agent"
	"github.com/nextlevelbuilder/vargos/internal/bootstrap"
	"github.com/nextlevelbuilder/vargos/internal/bus"
	"github.com/nextlevelbuilder/vargos/internal/channels"
	clichannel "github.com/nextlevelbuilder/vargos/internal/channels/cli"
	"github.com/nextlevelbuilder/vargos/internal/channels/discord"
	"github.com/nextlevelbuilder/vargos/internal/channels/telegram"
	"github.com/nextlevelbuilder/vargos/internal/channels/whatsapp"
	"github.com/nextlevelbuilder/vargos/internal/config"
	"github.com/nextlevelbuilder/vargos/internal/cron"
	"github.com/nextlevelbuilder/vargos/internal/gateway"
	"github.com/nextlevelbuilder/vargos/internal/inbound"
	"github.com/nextlevelbuilder/vargos/internal/replydelivery"
	"github.com/nextlevelbuilder/vargos/internal/sessionqueue"
	"github.com/nextlevelbuilder/vargos/internal/store"
	"github.com/nextlevelbuilder/vargos/internal/store/redisstore"
	"github.com/nextlevelbuilder/vargos/internal/store/pgstore"
	"github.com/nextlevelbuilder/vargos/internal/telemetry"
	"github.com/nextlevelbuilder/vargos/internal/tools"
	"github.com/nextlevelbuilder/vargos/pkg/protocol"

	"github.com/redis/go-redis/v9"
)

// app wires every Gateway collaborator together: the server, the
// inbound pipeline, the session queue, the agent lifecycle, the tool
// registry, and whichever channel adapters are enabled. This is the
// one place all of SPEC_FULL.md's components are assembled — every
// other package stays free of knowledge about its siblings.
type app struct {
	cfg   config.Config
	log   *slog.Logger
	store store.SessionStore

	server   *gateway.Server
	pipeline *inbound.Pipeline
	queue    *sessionqueue.Queue
	lc       *agent.Lifecycle
	cron     *cron.Producer
	tracer   *telemetry.Provider

	mu       sync.Mutex
	channels map[string]channels.Channel
}

func newApp(cfg config.Config, log *slog.Logger) (*app, error) {
	if log == nil {
		log = slog.Default()
	}

	sessStore, err := buildStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("build session store: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		store:    sessStore,
		channels: make(map[string]channels.Channel),
	}

	a.server = gateway.NewServer(gateway.Config{
		Addr:                    cfg.Gateway.Addr,
		SubscriberQueueSize:     cfg.Gateway.SubscriberQueueSize,
		SubscriberHighWaterMark: cfg.Gateway.SubscriberHighWaterMark,
	}, log)

	a.queue = sessionqueue.New(a)

	dataDir, err := bootstrap.DataDir()
	if err != nil {
		return nil, err
	}
	workspace := dataDir

	registry := tools.NewRegistry()
	tools.NewFileToolset(workspace).Register(registry)
	tools.NewMemoryToolset(workspace).Register(registry)
	tools.NewShellTool(tools.ShellConfig{Security: tools.ShellSecurityFull, Workdir: workspace}).Register(registry)
	tools.NewWebTool(0).Register(registry)
	tools.NewSessionsToolset(a.store, a.queue).Register(registry)

	a.cron = cron.New(time.Minute, a.onCronDue, log)
	tools.NewCronToolset(a.cron, "main").Register(registry)

	a.lc = agent.NewLifecycle(agent.EchoStreamer{}, registry, a.server.Bus(), a.onRunDone, log)
	a.lc.SetPromptInputs(agent.PromptInputs{
		AgentID:   "vargos",
		Workspace: workspace,
		OwnerIDs:  ownerIDs(cfg),
		ToolNames: registry.Names,
		HasMemory: true,
		HasSpawn:  true,
	})

	dedupe := bus.NewDedupeCache(
		time.Duration(cfg.Bus.DedupeTTLMs)*time.Millisecond,
		cfg.Bus.DedupeMaxSize,
	)
	a.pipeline = inbound.New(inbound.Config{
		Dedupe:      dedupe,
		Queue:       a,
		DebounceMs:  time.Duration(cfg.Bus.DebounceMs) * time.Millisecond,
		DebounceCap: cfg.Bus.DebounceBatch,
	})

	if cfg.CLI.Enabled {
		a.channels["cli"] = clichannel.New(os.Stdin, os.Stdout)
	}
	if cfg.Telegram.Enabled {
		token, err := bootstrap.ResolveSecret("telegram.token", cfg.Telegram.Token)
		if err != nil {
			return nil, fmt.Errorf("resolve telegram token: %w", err)
		}
		cfg.Telegram.Token = token
		ch, err := telegram.New(cfg.Telegram)
		if err != nil {
			return nil, fmt.Errorf("build telegram channel: %w", err)
		}
		a.channels["telegram"] = ch
	}
	if cfg.WhatsApp.Enabled {
		ch, err := whatsapp.New(cfg.WhatsApp)
		if err != nil {
			return nil, fmt.Errorf("build whatsapp channel: %w", err)
		}
		a.channels["whatsapp"] = ch
	}
	if cfg.Discord.Enabled {
		token, err := bootstrap.ResolveSecret("discord.token", cfg.Discord.Token)
		if err != nil {
			return nil, fmt.Errorf("resolve discord token: %w", err)
		}
		cfg.Discord.Token = token
		ch, err := discord.New(cfg.Discord)
		if err != nil {
			return nil, fmt.Errorf("build discord channel: %w", err)
		}
		a.channels["discord"] = ch
	}

	for _, ch := range a.channels {
		ch.OnInboundMessage(func(raw bus.RawMessage) { a.pipeline.Accept(raw) })
	}

	return a, nil
}

// ownerIDs unions every enabled channel's allow-list, so the system
// prompt's user-identity section (spec §4.10) names every owner
// regardless of which channel a run came in on.
func ownerIDs(cfg config.Config) []string {
	var out []string
	out = append(out, cfg.Telegram.AllowFrom...)
	out = append(out, cfg.WhatsApp.AllowFrom...)
	out = append(out, cfg.Discord.AllowFrom...)
	return out
}

// buildStore selects the SessionStore backend named by cfg.Backend.
func buildStore(cfg config.StoreConfig) (store.SessionStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "postgres":
		ps, err := pgstore.Open(context.Background(), cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := ps.Migrate(cfg.DSN); err != nil {
			return nil, err
		}
		return ps, nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redisstore.New(redis.NewClient(opts)), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Enqueue implements tools.SessionEnqueuer and inbound.SessionEnqueuer
// in one method, and persists the inbound
// message to the session store before handing it to the queue.
func (a *app) Enqueue(sessionKey string, input bus.NormalizedInput) {
	ctx := context.Background()
	_, _ = a.store.EnsureSession(ctx, sessionKey, store.KindChannel)
	_ = a.store.AppendMessage(ctx, sessionKey, store.Message{
		Role: store.RoleUser, Content: input.Content, Timestamp: input.Timestamp,
	})
	a.queue.Enqueue(sessionKey, input)
}

// compactionTokenBudget is the per-session history size, in estimated
// tokens, past which the Gateway announces a compaction event ahead
// of starting a run (spec §4.10).
const compactionTokenBudget = 8000

// StartRun implements sessionqueue.Runner. It checks the session's
// accumulated history against the compaction budget before delegating
// to the agent lifecycle.
func (a *app) StartRun(sessionKey string, input bus.NormalizedInput) {
	if history, err := a.store.History(context.Background(), sessionKey, 0); err == nil && agent.ShouldCompact(history, compactionTokenBudget) {
		if _, err := a.server.Bus().Publish(protocol.EventAgent, protocol.AgentEventCompaction, map[string]interface{}{"sessionKey": sessionKey}); err != nil {
			a.log.Warn("publish compaction event failed", "session", sessionKey, "error", err)
		}
	}
	a.lc.StartRun(sessionKey, input)
}

// CancelRun implements sessionqueue.Runner.
func (a *app) CancelRun(sessionKey string) { a.lc.CancelRun(sessionKey) }

// onRunDone is the Lifecycle's CompletionHook: it lets the queue start
// the next pending run for the session, persists the assistant's
// reply, and forwards it to the originating channel.
func (a *app) onRunDone(sessionKey string, outcome agent.Outcome) {
	a.queue.Complete(sessionKey)
	if outcome.Content != "" {
		_ = a.store.AppendMessage(context.Background(), sessionKey, store.Message{
			Role: store.RoleAssistant, Content: outcome.Content, Timestamp: time.Now(),
		})
	}
	a.deliverReply(sessionKey, outcome)
}

// onCronDue feeds a due cron job's synthetic input through the same
// inbound pipeline path as any channel message (spec §5.14).
func (a *app) onCronDue(job cron.Job, input bus.NormalizedInput) {
	a.Enqueue(input.Source.SessionKey, input)
}

// deliverReply chunks and sends outcome.Content back out the channel a
// session came in on, once its run completes (spec §4.5/§4.10). The
// channel is the session key's prefix, so cli: sessions go out through
// the CLI channel when it is enabled; sessions whose prefix names no
// enabled channel (cron: and agent:/subagent keys) are skipped.
func (a *app) deliverReply(sessionKey string, outcome agent.Outcome) {
	if outcome.Content == "" {
		return
	}
	channelName, recipientID, ok := splitSessionKey(sessionKey)
	if !ok {
		return
	}
	a.mu.Lock()
	ch, ok := a.channels[channelName]
	a.mu.Unlock()
	if !ok {
		return
	}

	err := replydelivery.Deliver(context.Background(), func(ctx context.Context, chunk string) error {
		return ch.Send(ctx, recipientID, chunk)
	}, outcome.Content, replydelivery.Options{})
	if err != nil {
		a.log.Warn("reply delivery failed", "session", sessionKey, "error", err)
	}
}

func splitSessionKey(sessionKey string) (channel, recipient string, ok bool) {
	idx := strings.IndexByte(sessionKey, ':')
	if idx < 0 {
		return "", "", false
	}
	return sessionKey[:idx], sessionKey[idx+1:], true
}

// run starts every enabled channel adapter, the Gateway server, and
// the cron producer, then blocks until ctx is cancelled, at which
// point it drains outbound sends and stops every adapter before
// returning (spec §6's SIGTERM graceful-shutdown contract).
func (a *app) run(ctx context.Context) error {
	dataDir, err := bootstrap.DataDir()
	if err != nil {
		return err
	}
	if err := bootstrap.EnsureLayout(dataDir); err != nil {
		return err
	}
	if err := bootstrap.WritePIDFile(dataDir); err != nil {
		return err
	}
	defer bootstrap.RemovePIDFile(dataDir)

	tracer, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "vargos-gateway",
		Endpoint:    a.cfg.Telemetry.Endpoint,
		Transport:   telemetry.Transport(a.cfg.Telemetry.Transport),
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	a.tracer = tracer
	defer tracer.Shutdown(context.Background())

	for name, ch := range a.channels {
		if err := ch.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize %s channel: %w", name, err)
		}
	}
	for name, ch := range a.channels {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("start %s channel: %w", name, err)
		}
		a.log.Info("channel started", "channel", name)
	}

	go a.cron.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			a.log.Error("gateway server error", "error", err)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for name, ch := range a.channels {
		if err := ch.Stop(stopCtx); err != nil {
			a.log.Warn("error stopping channel", "channel", name, "error", err)
		}
	}
	return nil
}
