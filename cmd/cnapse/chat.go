package main

import (
	"fmt"
	"os"

	"github.com/sandevgo/cnapse/internal/config"
	"github.com/sandevgo/cnapse/internal/transport/tui"
	"github.com/sandevgo/cnapse/pkg/log"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat screen",
	RunE: func(cmd *cobra.Command, args []string) error {
		runtimePath := config.GetRuntimePath()
		if err := config.EnsureRuntime(runtimePath); err != nil {
			return err
		}

		// The screen owns the terminal, so logs go to a file.
		logFile, err := os.OpenFile(config.AppConfig{RuntimePath: runtimePath}.GetChatLogPath(),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open chat log: %w", err)
		}
		defer logFile.Close()

		ctx, flush := log.NewContextWithWriter(cmd.Context(), debug || config.IsDebug(), logFile)
		defer flush()

		feed := tui.NewStateFeed()
		a, err := newApp(ctx, appOptions{withMCP: true, hook: feed.Hook()})
		if err != nil {
			return err
		}
		defer a.Close()

		return tui.Run(ctx, a.conv, a.commands, feed)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
