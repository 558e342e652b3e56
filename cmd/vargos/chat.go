package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/vargos/internal/bootstrap"
	"github.com/nextlevelbuilder/vargos/internal/config"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session against the agent over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd)
		},
	}
}

// runChat runs the same Gateway as serve, but with only the CLI
// channel enabled, so a single local operator can drive the agent
// from this terminal without any messaging-channel credentials
// configured.
func runChat(cmd *cobra.Command) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	path := configPath
	if path == "" {
		dataDir, err := bootstrap.DataDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dataDir, "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.CLI.Enabled = true
	cfg.Telegram.Enabled = false
	cfg.WhatsApp.Enabled = false
	cfg.Discord.Enabled = false

	a, err := newApp(cfg, log)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "vargos chat — type a message and press enter; Ctrl-C to exit")
	return a.run(cmd.Context())
}
