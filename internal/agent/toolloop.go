package agent

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Tool loop guard thresholds, scoped to a single agent run. Nothing in
// the lifecycle state machine itself stops running→running tool(call)
// transitions from repeating forever (spec §4.10's table has no
// bound on how many times a model can call a tool); toolLoopState is
// the guard that breaks a no-progress loop before it runs the session
// into the ground.
const (
	toolLoopHistorySize       = 30
	toolLoopWarningThreshold  = 5  // inject a warning into the conversation
	toolLoopCriticalThreshold = 10 // fail the call outright
)

// toolLoopState tracks recent tool calls for one sessionKey's run,
// detecting a no-progress loop: the same tool called with the same
// arguments, producing the same result, over and over.
type toolLoopState struct {
	sessionKey string
	history    []toolCallRecord
}

type toolCallRecord struct {
	toolName   string
	argsHash   string
	resultHash string // empty until recordResult fills it in
}

// record appends a tool call to history and returns its argsHash,
// which the caller threads through to recordResult/detect once the
// call's result is known.
func (s *toolLoopState) record(toolName string, args map[string]interface{}) string {
	h := hashToolCall(toolName, args)
	s.history = append(s.history, toolCallRecord{toolName: toolName, argsHash: h})
	if len(s.history) > toolLoopHistorySize {
		s.history = s.history[len(s.history)-toolLoopHistorySize:]
	}
	return h
}

// recordResult fills in the result hash of the most recent record
// still missing one for argsHash.
func (s *toolLoopState) recordResult(argsHash, resultContent string) {
	rh := hashResult(resultContent)
	for i := len(s.history) - 1; i >= 0; i-- {
		rec := &s.history[i]
		if rec.argsHash == argsHash && rec.resultHash == "" {
			rec.resultHash = rh
			return
		}
	}
}

// detect reports whether toolName/argsHash has stopped making
// progress within this run: "warning" injects a note into the
// conversation so the model can change course on its own; "critical"
// means the caller fails the call with an error instead of returning
// the tool's result.
func (s *toolLoopState) detect(toolName, argsHash string) (level, message string) {
	if len(s.history) < toolLoopWarningThreshold {
		return "", ""
	}

	// Count records with identical argsHash AND identical non-empty
	// resultHash, so a tool that keeps making progress (different
	// result each time) never trips the guard.
	var noProgressCount int
	var lastResultHash string

	for i := len(s.history) - 1; i >= 0; i-- {
		rec := s.history[i]
		if rec.argsHash != argsHash || rec.resultHash == "" {
			continue
		}
		if lastResultHash == "" {
			lastResultHash = rec.resultHash
		}
		if rec.resultHash == lastResultHash {
			noProgressCount++
		}
	}

	if noProgressCount >= toolLoopCriticalThreshold {
		return "critical", fmt.Sprintf(
			"%s has been called %d times in session %s with identical arguments and results; "+
				"stopping the run instead of looping forever.", toolName, noProgressCount, s.sessionKey)
	}

	if noProgressCount >= toolLoopWarningThreshold {
		return "warning", fmt.Sprintf(
			"[System: %s has been called %d times with the same arguments and identical results in this run. "+
				"This is not making progress. Try a different approach, use a different tool, "+
				"or respond to the user with what you already know.]", toolName, noProgressCount)
	}

	return "", ""
}

// hashToolCall produces a deterministic hash of tool name + arguments.
func hashToolCall(toolName string, args map[string]interface{}) string {
	s := toolName + ":" + stableJSON(args)
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:16]) // 32 hex chars, enough for dedup
}

// hashResult produces a hash of a tool's result content.
func hashResult(content string) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", h[:16])
}

// stableJSON serializes a value with sorted map keys so two calls
// with the same arguments in a different order hash identically.
func stableJSON(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%q:%s", k, stableJSON(val[k]))
		}
		return "{" + strings.Join(parts, ",") + "}"
	case []interface{}:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = stableJSON(elem)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
