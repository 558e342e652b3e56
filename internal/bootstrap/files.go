// Package bootstrap loads the workspace persona/context files that get
// embedded into a run's system prompt (internal/agent.BuildSystemPrompt)
// and resolves the on-disk layout (data dir, media dir, secrets) spec
// §6 specifies for Gateway persistence collaborators.
//
// Bootstrap files live in the workspace directory:
//
//	AGENTS.md   — operating instructions (every session)
//	SOUL.md     — persona, tone, boundaries
//	USER.md     — user profile
//	IDENTITY.md — agent name, emoji, creature, vibe
//	TOOLS.md    — local tool notes
//	HEARTBEAT.md— periodic check tasks
//	BOOTSTRAP.md— first-run ritual (deleted after completion)
//	MEMORY.md   — long-term curated memory (internal/tools' memory toolset)
package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
)

// Bootstrap filenames, loaded from the workspace root.
const (
	AgentsFile     = "AGENTS.md"
	SoulFile       = "SOUL.md"
	ToolsFile      = "TOOLS.md"
	IdentityFile   = "IDENTITY.md"
	UserFile       = "USER.md"
	HeartbeatFile  = "HEARTBEAT.md"
	BootstrapFile  = "BOOTSTRAP.md"
	MemoryFile     = "MEMORY.md"
	MemoryAltFile  = "memory.md"
	MemoryJSONFile = "MEMORY.json"
)

// maxContextFileBytes caps how much of one bootstrap file's content
// rides along in a system prompt; a workspace's MEMORY.md in
// particular can grow without bound over the life of an agent.
const maxContextFileBytes = 8000

// standardFiles is the ordered list of bootstrap files to load.
var standardFiles = []string{
	AgentsFile,
	SoulFile,
	ToolsFile,
	IdentityFile,
	UserFile,
	HeartbeatFile,
	BootstrapFile,
}

// minimalAllowlist is the set of files loaded for subagent/cron sessions.
// Matching TS MINIMAL_BOOTSTRAP_ALLOWLIST.
var minimalAllowlist = map[string]bool{
	AgentsFile: true,
	ToolsFile:  true,
}

// File represents a workspace bootstrap file loaded from disk.
type File struct {
	Name    string // filename (e.g. "AGENTS.md")
	Path    string // absolute path
	Content string // file content (empty if missing)
	Missing bool   // true if file doesn't exist on disk
}

// ContextFile is a File that has cleared FilterForSession and been
// truncated to a size safe to embed directly in a system prompt
// (internal/agent.SystemPromptConfig.ContextFiles).
type ContextFile struct {
	Path    string // display path (e.g. "SOUL.md")
	Content string // truncated content
}

// EmbedContextFiles drops missing files and truncates the rest to
// maxContextFileBytes, returning the slice BuildSystemPrompt embeds
// under "# Project Context". Call after FilterForSession so a
// subagent/cron run only pays the truncation cost for files it will
// actually see.
func EmbedContextFiles(files []File) []ContextFile {
	out := make([]ContextFile, 0, len(files))
	for _, f := range files {
		if f.Missing || f.Content == "" {
			continue
		}
		content := f.Content
		if len(content) > maxContextFileBytes {
			content = content[:maxContextFileBytes] + "\n...(truncated)"
		}
		out = append(out, ContextFile{Path: f.Name, Content: content})
	}
	return out
}

// LoadWorkspaceFiles reads all recognized bootstrap files from a workspace directory.
// Files are returned in a fixed order matching the TS implementation.
// Missing files are included with Missing=true and empty Content.
func LoadWorkspaceFiles(workspaceDir string) []File {
	var files []File

	// Load standard files
	for _, name := range standardFiles {
		f := loadFile(workspaceDir, name)
		files = append(files, f)
	}

	// Load MEMORY.md (try MEMORY.md first, then memory.md)
	memFile := loadFile(workspaceDir, MemoryFile)
	if memFile.Missing {
		memFile = loadFile(workspaceDir, MemoryAltFile)
	}
	files = append(files, memFile)

	return files
}

// FilterForSession narrows files to the minimal allowlist
// (AGENTS.md, TOOLS.md) for subagent/cron sessions; top-level
// sessions get everything LoadWorkspaceFiles returned.
func FilterForSession(files []File, sessionKey string) []File {
	if !IsSubagentSession(sessionKey) && !IsCronSession(sessionKey) {
		return files
	}

	var filtered []File
	for _, f := range files {
		if minimalAllowlist[f.Name] {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// IsSubagentSession reports whether sessionKey identifies a subagent
// run. This is the canonical detector (also used by internal/agent's
// TOOL_FORBIDDEN gate): any of
//   - the key begins with "agent:"
//   - the key contains the literal substring "subagent" anywhere
//     (covers both "*:subagent:*" and ad hoc shapes)
func IsSubagentSession(sessionKey string) bool {
	if strings.HasPrefix(sessionKey, "agent:") {
		return true
	}
	return strings.Contains(strings.ToLower(sessionKey), "subagent")
}

// IsCronSession reports whether sessionKey identifies a cron-triggered
// run: an "agent:{agentId}:{rest}" key whose rest begins with "cron:".
func IsCronSession(sessionKey string) bool {
	rest := sessionRest(sessionKey)
	return strings.HasPrefix(strings.ToLower(rest), "cron:")
}

// sessionRest extracts the rest part after "agent:{agentId}:" from a session key.
func sessionRest(sessionKey string) string {
	// Format: agent:{agentId}:{rest}
	parts := strings.SplitN(sessionKey, ":", 3)
	if len(parts) < 3 || parts[0] != "agent" {
		return ""
	}
	return parts[2]
}

func loadFile(dir, name string) File {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return File{Name: name, Path: path, Missing: true}
	}
	return File{Name: name, Path: path, Content: string(data), Missing: false}
}
