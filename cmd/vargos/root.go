package main

import (
	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vargos",
		Short: "Vargos — a personal-assistant Gateway bridging messaging channels to an agent runtime",
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: <data dir>/config.yaml)")

	root.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newSessionsCmd(),
		newVersionCmd(),
	)
	return root
}
