package agent

import "github.com/nextlevelbuilder/vargos/internal/bootstrap"

// IsSubagentSession reports whether sessionKey identifies a subagent
// run rather than a top-level, channel-bound session (spec §4.10).
// This delegates to bootstrap.IsSubagentSession, the single canonical
// detector shared by workspace-file filtering and this package's
// TOOL_FORBIDDEN gate, so the two can never drift apart.
func IsSubagentSession(sessionKey string) bool {
	return bootstrap.IsSubagentSession(sessionKey)
}

// ForbiddenSubagentTools is the reduced tool set denied to subagent
// sessions (spec §4.10). A call to any of these must fail with
// TOOL_FORBIDDEN without invoking the tool.
var ForbiddenSubagentTools = map[string]struct{}{
	"sessions_list":    {},
	"sessions_history": {},
	"sessions_send":    {},
	"sessions_spawn":   {},
}

// IsToolForbidden reports whether toolName is denied for sessionKey.
// This gate must run before the tool is ever invoked.
func IsToolForbidden(sessionKey, toolName string) bool {
	if !IsSubagentSession(sessionKey) {
		return false
	}
	_, forbidden := ForbiddenSubagentTools[toolName]
	return forbidden
}
