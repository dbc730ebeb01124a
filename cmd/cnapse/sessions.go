package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sandevgo/cnapse/internal/service/ui"
	"github.com/sandevgo/cnapse/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04"

var (
	sessionLimit  int
	messagesLimit int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored conversation sessions",
}

func withStore(cmd *cobra.Command, fn func(store *sqlite.Store) error) error {
	ctx, flush := setupLogger(cmd.Context())
	defer flush()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cmd.SetContext(ctx)
	return fn(store)
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store *sqlite.Store) error {
			sessions, err := store.ListSessions(cmd.Context(), sessionLimit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "UPDATED", "MESSAGES", "SUMMARY")
			for _, s := range sessions {
				t.Row(s.ID, s.UpdatedAt.Local().Format(timeLayout), strconv.Itoa(s.MessageCount), s.Summary)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		})
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print the latest messages of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store *sqlite.Store) error {
			s, err := store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			msgs, err := store.GetMessages(cmd.Context(), s.ID, messagesLimit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.TitleStyle.Render("Session "+s.ID))
			// Newest first from the store.
			for i := len(msgs) - 1; i >= 0; i-- {
				m := msgs[i]
				fmt.Fprintf(out, "%s %s: %s\n", m.CreatedAt.Local().Format(timeLayout), m.Role, m.Content)
			}
			return nil
		})
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear [id]",
	Short: "Delete every message of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store *sqlite.Store) error {
			if err := store.ClearSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared session %s\n", args[0])
			return nil
		})
	},
}

func init() {
	sessionsListCmd.Flags().IntVarP(&sessionLimit, "limit", "n", 10, "maximum sessions to show")
	sessionsShowCmd.Flags().IntVarP(&messagesLimit, "limit", "n", 50, "maximum messages to show")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsClearCmd)
	rootCmd.AddCommand(sessionsCmd)
}
