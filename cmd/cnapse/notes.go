package main

import (
	"fmt"
	"strings"

	"github.com/sandevgo/cnapse/internal/providers/tools"
	"github.com/spf13/cobra"
)

var (
	noteTags  []string
	noteLimit int
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Save and list long-term notes",
}

var notesAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Save a note",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		id, err := store.SaveNote(ctx, strings.Join(args, " "), noteTags)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved note %s\n", id)
		return nil
	},
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		notes, err := store.GetNotes(ctx, noteTags, noteLimit)
		if err != nil {
			return err
		}
		if len(notes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No notes.")
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), tools.FormatNotes(notes))
		return nil
	},
}

func init() {
	notesCmd.PersistentFlags().StringSliceVarP(&noteTags, "tag", "t", nil, "note tags")
	notesListCmd.Flags().IntVarP(&noteLimit, "limit", "n", 20, "maximum notes to show")

	notesCmd.AddCommand(notesAddCmd, notesListCmd)
	rootCmd.AddCommand(notesCmd)
}
