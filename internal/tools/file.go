package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileToolset builds the read_file/write_file/list_files tools, each
// jailed to workspace: every resolved path must stay within it (spec
// §1's "file" tool), matching the teacher's WriteFileTool workspace
// restriction (internal/tools/filesystem_write.go) but without that
// file's sandbox/virtual-FS routing, which has no analogue in scope.
type FileToolset struct {
	workspace string
}

// NewFileToolset builds a FileToolset rooted at workspace.
func NewFileToolset(workspace string) *FileToolset {
	return &FileToolset{workspace: workspace}
}

// Register adds read_file, write_file, and list_files to r.
func (f *FileToolset) Register(r *Registry) {
	r.MustRegister(Tool{
		Name:        "read_file",
		Description: "Read the contents of a file",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{"type": "string", "description": "Path to the file, relative to the workspace"},
			},
			"required": []string{"path"},
		},
		Run: f.readFile,
	})
	r.MustRegister(Tool{
		Name:        "write_file",
		Description: "Write content to a file, creating directories as needed",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path":    map[string]interface{}{"type": "string", "description": "Path to the file, relative to the workspace"},
				"content": map[string]interface{}{"type": "string", "description": "Content to write"},
			},
			"required": []string{"path", "content"},
		},
		Run: f.writeFile,
	})
	r.MustRegister(Tool{
		Name:        "list_files",
		Description: "List directory contents",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{"type": "string", "description": "Directory to list, relative to the workspace (default: workspace root)"},
			},
		},
		Run: f.listFiles,
	})
}

func (f *FileToolset) readFile(_ context.Context, _ string, args map[string]interface{}) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	resolved, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func (f *FileToolset) writeFile(_ context.Context, _ string, args map[string]interface{}) (string, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	resolved, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
}

func (f *FileToolset) listFiles(_ context.Context, _ string, args map[string]interface{}) (string, error) {
	path, _ := args["path"].(string)
	resolved := f.workspace
	if path != "" {
		var err error
		resolved, err = f.resolve(path)
		if err != nil {
			return "", err
		}
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}

// resolve joins path onto the workspace root and rejects any result
// that escapes it via ".." traversal.
func (f *FileToolset) resolve(path string) (string, error) {
	resolved := filepath.Join(f.workspace, path)
	rel, err := filepath.Rel(f.workspace, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", path)
	}
	return resolved, nil
}
