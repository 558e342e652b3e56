// Package config loads the Gateway's YAML configuration and provides
// Watch (fsnotify reload) and MigrateLegacy (JSON5 conversion). Load
// reads only YAML and calls neither; the serve command does not call
// them either, so config changes take effect on restart.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GatewayConfig tunes the WebSocket server and event bus.
type GatewayConfig struct {
	Addr                    string `yaml:"addr"`
	SubscriberQueueSize     int    `yaml:"subscriber_queue_size"`
	SubscriberHighWaterMark int    `yaml:"subscriber_high_water_mark"`
	DispatchTimeoutMs       int64  `yaml:"dispatch_timeout_ms"`
}

// TelegramConfig configures the Telegram channel adapter.
type TelegramConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Token          string   `yaml:"token"`
	Proxy          string   `yaml:"proxy,omitempty"`
	AllowFrom      []string `yaml:"allow_from,omitempty"`
	DMPolicy       string   `yaml:"dm_policy,omitempty"`
	GroupPolicy    string   `yaml:"group_policy,omitempty"`
	RequireMention *bool    `yaml:"require_mention,omitempty"`
	HistoryLimit   int      `yaml:"history_limit,omitempty"`
	StreamMode     string   `yaml:"stream_mode,omitempty"`
	ReactionLevel  string   `yaml:"reaction_level,omitempty"`
	MediaMaxBytes  int64    `yaml:"media_max_bytes,omitempty"`
	LinkPreview    *bool    `yaml:"link_preview,omitempty"`
}

// WhatsAppConfig configures the WhatsApp channel adapter.
type WhatsAppConfig struct {
	Enabled   bool     `yaml:"enabled"`
	DeviceDB  string   `yaml:"device_db"`
	AllowFrom []string `yaml:"allow_from,omitempty"`
}

// DiscordConfig configures the Discord channel adapter.
type DiscordConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Token       string   `yaml:"token"`
	AllowFrom   []string `yaml:"allow_from,omitempty"`
	DMPolicy    string   `yaml:"dm_policy,omitempty"`
	GroupPolicy string   `yaml:"group_policy,omitempty"`
}

// CLIConfig configures the interactive/stdio CLI channel.
type CLIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StoreConfig selects and configures the SessionStore backend.
type StoreConfig struct {
	Backend  string `yaml:"backend"` // "memory" (default), "postgres", "redis"
	DSN      string `yaml:"dsn,omitempty"`
	RedisURL string `yaml:"redis_url,omitempty"`
}

// BusConfig tunes the dedupe cache and debouncer shared by every
// channel's inbound pipeline.
type BusConfig struct {
	DedupeTTLMs    int64 `yaml:"dedupe_ttl_ms"`
	DedupeMaxSize  int   `yaml:"dedupe_max_size"`
	DebounceMs     int64 `yaml:"debounce_ms"`
	DebounceBatch  int   `yaml:"debounce_batch"`
}

// ReconnectConfig holds backoff settings in the shape of
// gatewayclient.NewReconnector's arguments; no channel adapter builds a
// Reconnector from it.
type ReconnectConfig struct {
	BaseMs      int64 `yaml:"base_ms"`
	MaxMs       int64 `yaml:"max_ms"`
	MaxAttempts int   `yaml:"max_attempts"`
}

// TelemetryConfig tunes the OTLP tracing exporter. An empty Endpoint
// disables export.
type TelemetryConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Transport string `yaml:"transport,omitempty"` // "http" (default) or "grpc"
}

// Config is the complete, top-level Gateway configuration document.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Bus       BusConfig       `yaml:"bus"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Store     StoreConfig     `yaml:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
	Discord   DiscordConfig   `yaml:"discord"`
	CLI       CLIConfig       `yaml:"cli"`
}

// Default returns a Config populated with every package default (spec
// §4.2-§4.8 defaults).
func Default() Config {
	return Config{
		Gateway: GatewayConfig{
			Addr:                    "127.0.0.1:9000",
			SubscriberQueueSize:     256,
			SubscriberHighWaterMark: 200,
			DispatchTimeoutMs:       30_000,
		},
		Bus: BusConfig{
			DedupeTTLMs:   60_000,
			DedupeMaxSize: 10_000,
			DebounceMs:    1500,
			DebounceBatch: 20,
		},
		Reconnect: ReconnectConfig{
			BaseMs:      2000,
			MaxMs:       30_000,
			MaxAttempts: -1,
		},
		Store: StoreConfig{Backend: "memory"},
		CLI:   CLIConfig{Enabled: true},
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default() so any field the file omits keeps its default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg back to path as YAML, e.g. after a legacy migration.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
