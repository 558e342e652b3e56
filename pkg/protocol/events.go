package protocol

// Event topics published by Gateway-side services. A topic is the pair
// (source, event); these constants are the `event` half.
const (
	EventAgent    = "agent"
	EventChat     = "chat"
	EventHealth   = "health"
	EventCron     = "cron"
	EventPresence = "presence"
	EventShutdown = "shutdown"

	// Cache invalidation events (internal, not forwarded to WS clients).
	EventCacheInvalidate = "cache.invalidate"
)

// Agent lifecycle phases, carried in agent events as payload.phase
// (spec §4.10 state machine).
const (
	AgentPhaseIdle       = "idle"
	AgentPhasePreparing  = "preparing"
	AgentPhaseRunning    = "running"
	AgentPhaseFinalizing = "finalizing"
	AgentPhaseCompleted  = "completed"
	AgentPhaseFailed     = "failed"
)

// Agent event subtypes (in payload.type).
const (
	AgentEventDelta      = "delta"
	AgentEventTool       = "tool"
	AgentEventCompaction = "compaction"
	AgentEventRunStarted = "run.started"
	AgentEventRunComplete = "run.completed"
)

// Chat event subtypes (in payload.type).
const (
	ChatEventChunk   = "chunk"
	ChatEventMessage = "message"
)
