package main

import (
	"fmt"
	"strings"

	"github.com/sandevgo/cnapse/internal/service/agent"
	"github.com/sandevgo/cnapse/internal/service/ui"
	"github.com/spf13/cobra"
)

var (
	runHandler  string
	runOutput   string
	runNoMemory bool
)

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Run a single request and print the reply",
	Args:  cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ValidFormat(runOutput) {
			return fmt.Errorf("unknown output format %q", runOutput)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flush := setupLogger(cmd.Context())
		defer flush()

		a, err := newApp(ctx, appOptions{inMemory: runNoMemory, withMCP: true})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.conv.Run(ctx, strings.Join(args, " "), agent.Options{
			Handler:     runHandler,
			NoRetrieval: runNoMemory,
		})
		if err != nil {
			return err
		}
		return ui.RenderTurn(cmd.OutOrStdout(), res, runOutput)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runHandler, "agent", "a", "", "force a handler (coder, filer, shell, memory, app)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", ui.FormatText, "output format: text, json or markdown")
	runCmd.Flags().BoolVar(&runNoMemory, "no-memory", false, "do not read or persist conversation history")
	rootCmd.AddCommand(runCmd)
}
