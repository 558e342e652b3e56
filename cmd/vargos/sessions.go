package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/vargos/internal/bootstrap"
	"github.com/nextlevelbuilder/vargos/internal/config"
	"github.com/nextlevelbuilder/vargos/internal/store"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect sessions held in the configured SessionStore",
	}
	cmd.AddCommand(newSessionsListCmd(), newSessionsShowCmd(), newSessionsDeleteCmd())
	return cmd
}

func loadSessionStore() (store.SessionStore, error) {
	path := configPath
	if path == "" {
		dataDir, err := bootstrap.DataDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dataDir, "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return buildStore(cfg.Store)
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all known sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSessionStore()
			if err != nil {
				return err
			}
			sessions, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION KEY\tKIND\tLABEL\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.SessionKey, s.Kind, s.Label, s.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-key>",
		Short: "Show a session's metadata and recent message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSessionStore()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := st.Get(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session:  %s\n", sess.SessionKey)
			fmt.Fprintf(out, "kind:     %s\n", sess.Kind)
			fmt.Fprintf(out, "label:    %s\n", sess.Label)
			fmt.Fprintf(out, "agent:    %s\n", sess.AgentID)
			fmt.Fprintf(out, "created:  %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "updated:  %s\n", sess.UpdatedAt.Format("2006-01-02 15:04:05"))

			history, err := st.History(ctx, args[0], 50)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "--- history (last 50) ---")
			for _, m := range history {
				fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Role, m.Content)
			}
			return nil
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-key>",
		Short: "Delete a session and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSessionStore()
			if err != nil {
				return err
			}
			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
