package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Addr != Default().Gateway.Addr {
		t.Fatalf("expected default addr, got %q", cfg.Gateway.Addr)
	}
}

func TestLoad_OverridesOnlySpecifiedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vargos.yaml")
	content := "telegram:\n  enabled: true\n  token: \"abc123\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Telegram.Enabled || cfg.Telegram.Token != "abc123" {
		t.Fatalf("telegram config not applied: %+v", cfg.Telegram)
	}
	if cfg.Gateway.Addr != Default().Gateway.Addr {
		t.Fatalf("unspecified gateway addr should keep default, got %q", cfg.Gateway.Addr)
	}
	if cfg.Bus.DedupeMaxSize != Default().Bus.DedupeMaxSize {
		t.Fatalf("unspecified bus config should keep default")
	}
}

func TestMigrateLegacy_BuildsGatewayAddrFromHostPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json5")
	content := `{
		// legacy config, comments allowed
		gateway: { host: "0.0.0.0", port: 9100 },
		telegram: { token: "xyz" },
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write legacy config: %v", err)
	}

	cfg, err := MigrateLegacy(path)
	if err != nil {
		t.Fatalf("MigrateLegacy: %v", err)
	}
	if cfg.Gateway.Addr != "0.0.0.0:9100" {
		t.Fatalf("addr = %q, want 0.0.0.0:9100", cfg.Gateway.Addr)
	}
	if !cfg.Telegram.Enabled || cfg.Telegram.Token != "xyz" {
		t.Fatalf("telegram not migrated: %+v", cfg.Telegram)
	}
}
