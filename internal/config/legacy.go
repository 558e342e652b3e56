package config

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// legacyDocument mirrors the pre-YAML config shape some older
// deployments still carry on disk (a JSON5 file with comments and
// trailing commas, loosely structured). MigrateLegacy reads one and
// returns the equivalent Config.
type legacyDocument struct {
	Gateway struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"gateway"`
	Telegram struct {
		Token     string   `json:"token"`
		AllowFrom []string `json:"allowFrom"`
	} `json:"telegram"`
	WhatsApp struct {
		DeviceDB string `json:"deviceDb"`
	} `json:"whatsapp"`
}

// MigrateLegacy reads a legacy JSON5 config at path and returns the
// equivalent Config, layered over Default() for anything the legacy
// format never expressed.
func MigrateLegacy(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read legacy config %s: %w", path, err)
	}

	var legacy legacyDocument
	if err := json5.Unmarshal(data, &legacy); err != nil {
		return cfg, fmt.Errorf("parse legacy config %s: %w", path, err)
	}

	if legacy.Gateway.Host != "" || legacy.Gateway.Port != 0 {
		host := legacy.Gateway.Host
		if host == "" {
			host = "127.0.0.1"
		}
		port := legacy.Gateway.Port
		if port == 0 {
			port = 9000
		}
		cfg.Gateway.Addr = fmt.Sprintf("%s:%d", host, port)
	}

	if legacy.Telegram.Token != "" {
		cfg.Telegram.Enabled = true
		cfg.Telegram.Token = legacy.Telegram.Token
		cfg.Telegram.AllowFrom = legacy.Telegram.AllowFrom
	}
	if legacy.WhatsApp.DeviceDB != "" {
		cfg.WhatsApp.Enabled = true
		cfg.WhatsApp.DeviceDB = legacy.WhatsApp.DeviceDB
	}

	return cfg, nil
}
