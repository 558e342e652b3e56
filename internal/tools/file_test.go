package tools

import (
	"context"
	"testing"
)

func TestFileToolsetWriteThenRead(t *testing.T) {
	ws := t.TempDir()
	r := NewRegistry()
	NewFileToolset(ws).Register(r)

	if _, err := r.InvokeTool(context.Background(), "cli:local", "write_file", map[string]interface{}{
		"path": "notes/today.md", "content": "buy milk",
	}); err != nil {
		t.Fatalf("write_file: %v", err)
	}

	out, err := r.InvokeTool(context.Background(), "cli:local", "read_file", map[string]interface{}{
		"path": "notes/today.md",
	})
	if err != nil {
		t.Fatalf("read_file: %v", err)
	}
	if out != "buy milk" {
		t.Fatalf("read_file content = %q, want %q", out, "buy milk")
	}
}

func TestFileToolsetListFiles(t *testing.T) {
	ws := t.TempDir()
	r := NewRegistry()
	NewFileToolset(ws).Register(r)
	_, _ = r.InvokeTool(context.Background(), "cli:local", "write_file", map[string]interface{}{"path": "a.txt", "content": "1"})
	_, _ = r.InvokeTool(context.Background(), "cli:local", "write_file", map[string]interface{}{"path": "b.txt", "content": "2"})

	out, err := r.InvokeTool(context.Background(), "cli:local", "list_files", nil)
	if err != nil {
		t.Fatalf("list_files: %v", err)
	}
	if out != "a.txt\nb.txt" {
		t.Fatalf("list_files = %q, want %q", out, "a.txt\nb.txt")
	}
}

func TestFileToolsetRejectsPathEscape(t *testing.T) {
	ws := t.TempDir()
	r := NewRegistry()
	NewFileToolset(ws).Register(r)

	_, err := r.InvokeTool(context.Background(), "cli:local", "read_file", map[string]interface{}{
		"path": "../../etc/passwd",
	})
	if err == nil {
		t.Fatal("read_file with a traversal path succeeded, want an error")
	}
}

func TestFileToolsetReadRequiresPath(t *testing.T) {
	ws := t.TempDir()
	r := NewRegistry()
	NewFileToolset(ws).Register(r)

	if _, err := r.InvokeTool(context.Background(), "cli:local", "read_file", nil); err == nil {
		t.Fatal("read_file with no path succeeded, want an error")
	}
}
