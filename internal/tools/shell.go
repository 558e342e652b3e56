package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	shellwords "github.com/mattn/go-shellwords"
)

// ShellSecurity mirrors the teacher's exec approval modes
// (internal/tools/exec_approval.go), reduced to the allow/deny policy
// this Gateway enforces synchronously (no interactive ask-mode: a
// messaging-channel agent has no terminal to prompt).
type ShellSecurity string

const (
	ShellSecurityDeny      ShellSecurity = "deny"
	ShellSecurityAllowlist ShellSecurity = "allowlist"
	ShellSecurityFull      ShellSecurity = "full"
)

// ShellConfig tunes the shell tool's command policy and execution
// bound.
type ShellConfig struct {
	Security  ShellSecurity
	Allowlist []string // command names permitted when Security == allowlist
	Workdir   string
	Timeout   time.Duration // default 30s
}

// ShellTool runs a single shell command line, parsed with
// go-shellwords (teacher dependency) rather than handed to /bin/sh, so
// argument splitting never triggers accidental shell metacharacter
// expansion.
type ShellTool struct {
	cfg ShellConfig
}

// NewShellTool builds a ShellTool from cfg, defaulting Timeout to 30s.
func NewShellTool(cfg ShellConfig) *ShellTool {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Security == "" {
		cfg.Security = ShellSecurityFull
	}
	return &ShellTool{cfg: cfg}
}

// Register adds the "exec" tool to r.
func (s *ShellTool) Register(r *Registry) {
	r.MustRegister(Tool{
		Name:        "exec",
		Description: "Run a shell command and return its combined stdout/stderr",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"command": map[string]interface{}{"type": "string", "description": "Command line to execute"},
			},
			"required": []string{"command"},
		},
		Run: s.run,
	})
}

func (s *ShellTool) run(ctx context.Context, _ string, args map[string]interface{}) (string, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}

	if s.cfg.Security == ShellSecurityDeny {
		return "", fmt.Errorf("shell execution is disabled")
	}

	parts, err := shellwords.Parse(command)
	if err != nil {
		return "", fmt.Errorf("parse command: %w", err)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("empty command")
	}

	if s.cfg.Security == ShellSecurityAllowlist && !s.allowed(parts[0]) {
		return "", fmt.Errorf("command %q is not in the allowlist", parts[0])
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, parts[0], parts[1:]...)
	cmd.Dir = s.cfg.Workdir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	output := out.String()
	if runCtx.Err() != nil {
		return output, fmt.Errorf("command timed out after %s", s.cfg.Timeout)
	}
	if runErr != nil {
		return output, fmt.Errorf("command failed: %w", runErr)
	}
	return strings.TrimRight(output, "\n"), nil
}

func (s *ShellTool) allowed(bin string) bool {
	for _, a := range s.cfg.Allowlist {
		if a == bin {
			return true
		}
	}
	return false
}
