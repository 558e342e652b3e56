package tools

import (
	"context"
	"testing"
)

func TestShellToolRunsAllowedCommand(t *testing.T) {
	r := NewRegistry()
	NewShellTool(ShellConfig{Security: ShellSecurityFull, Workdir: t.TempDir()}).Register(r)

	out, err := r.InvokeTool(context.Background(), "cli:local", "exec", map[string]interface{}{
		"command": "echo hello",
	})
	if err != nil {
		t.Fatalf("exec echo: %v", err)
	}
	if out != "hello" {
		t.Fatalf("exec output = %q, want %q", out, "hello")
	}
}

func TestShellToolDenySecurityRejectsEverything(t *testing.T) {
	r := NewRegistry()
	NewShellTool(ShellConfig{Security: ShellSecurityDeny}).Register(r)

	if _, err := r.InvokeTool(context.Background(), "cli:local", "exec", map[string]interface{}{"command": "echo hi"}); err == nil {
		t.Fatal("exec under deny security succeeded, want an error")
	}
}

func TestShellToolAllowlistRejectsUnlistedBinary(t *testing.T) {
	r := NewRegistry()
	NewShellTool(ShellConfig{Security: ShellSecurityAllowlist, Allowlist: []string{"echo"}, Workdir: t.TempDir()}).Register(r)

	if _, err := r.InvokeTool(context.Background(), "cli:local", "exec", map[string]interface{}{"command": "ls"}); err == nil {
		t.Fatal("exec of a non-allowlisted binary succeeded, want an error")
	}
	if _, err := r.InvokeTool(context.Background(), "cli:local", "exec", map[string]interface{}{"command": "echo ok"}); err != nil {
		t.Fatalf("exec of an allowlisted binary failed: %v", err)
	}
}

func TestShellToolRequiresCommand(t *testing.T) {
	r := NewRegistry()
	NewShellTool(ShellConfig{Security: ShellSecurityFull}).Register(r)
	if _, err := r.InvokeTool(context.Background(), "cli:local", "exec", nil); err == nil {
		t.Fatal("exec with no command succeeded, want an error")
	}
}
