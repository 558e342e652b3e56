package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nextlevelbuilder/vargos/internal/bootstrap"
)

// MemoryToolset implements the agent's "memory" tool (spec §1) over
// the workspace's MEMORY.md file — the same curated long-term memory
// file internal/bootstrap loads into the system prompt on every run.
// Writing through this tool, rather than write_file directly, keeps
// memory edits append-first so the model doesn't have to re-read and
// retransmit the whole file to add one fact.
type MemoryToolset struct {
	workspace string
}

// NewMemoryToolset builds a MemoryToolset rooted at workspace.
func NewMemoryToolset(workspace string) *MemoryToolset {
	return &MemoryToolset{workspace: workspace}
}

// Register adds memory_search and memory_append to r.
func (m *MemoryToolset) Register(r *Registry) {
	r.MustRegister(Tool{
		Name:        "memory_search",
		Description: "Search the curated long-term memory file (MEMORY.md) for lines matching a query",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{"type": "string", "description": "Substring to search for, case-insensitive"},
			},
			"required": []string{"query"},
		},
		Run: m.search,
	})
	r.MustRegister(Tool{
		Name:        "memory_append",
		Description: "Append a line to the curated long-term memory file (MEMORY.md)",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"content": map[string]interface{}{"type": "string", "description": "Line to append"},
			},
			"required": []string{"content"},
		},
		Run: m.append,
	})
}

func (m *MemoryToolset) path() string {
	return filepath.Join(m.workspace, bootstrap.MemoryFile)
}

func (m *MemoryToolset) search(_ context.Context, _ string, args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	data, err := os.ReadFile(m.path())
	if err != nil {
		if os.IsNotExist(err) {
			return "(no memory file yet)", nil
		}
		return "", fmt.Errorf("read %s: %w", bootstrap.MemoryFile, err)
	}

	needle := strings.ToLower(query)
	var hits []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(strings.ToLower(line), needle) {
			hits = append(hits, line)
		}
	}
	if len(hits) == 0 {
		return "no matches", nil
	}
	return strings.Join(hits, "\n"), nil
}

func (m *MemoryToolset) append(_ context.Context, _ string, args map[string]interface{}) (string, error) {
	content, _ := args["content"].(string)
	if content == "" {
		return "", fmt.Errorf("content is required")
	}

	f, err := os.OpenFile(m.path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", bootstrap.MemoryFile, err)
	}
	defer f.Close()

	if _, err := f.WriteString(strings.TrimRight(content, "\n") + "\n"); err != nil {
		return "", fmt.Errorf("append to %s: %w", bootstrap.MemoryFile, err)
	}
	return "memory updated", nil
}
