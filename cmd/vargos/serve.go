package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/vargos/internal/bootstrap"
	"github.com/nextlevelbuilder/vargos/internal/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Gateway: channel adapters, agent runs, and the control-plane server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

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

	a, err := newApp(cfg, log)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	ctx := cmd.Context()

	// SIGUSR2 restarts the process in place: the running binary is
	// re-executed with the same arguments and environment (spec §6).
	usr2 := make(chan os.Signal, 1)
	signal.Notify(usr2, syscall.SIGUSR2)
	go func() {
		for range usr2 {
			exe, err := os.Executable()
			if err != nil {
				log.Error("SIGUSR2: resolve executable for re-exec", "error", err)
				continue
			}
			log.Info("received SIGUSR2, re-executing", "exe", exe)
			if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
				log.Error("SIGUSR2: re-exec failed", "error", err)
			}
		}
	}()
	defer signal.Stop(usr2)

	log.Info("vargos starting", "addr", cfg.Gateway.Addr, "config", path)
	return a.run(ctx)
}
