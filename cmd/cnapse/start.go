package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sandevgo/cnapse/internal/config"
	"github.com/sandevgo/cnapse/internal/transport/cli"
	"github.com/sandevgo/cnapse/internal/transport/telegram"
	"github.com/sandevgo/cnapse/pkg/log"
	"github.com/sandevgo/cnapse/pkg/srv"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the line console and the enabled remote surfaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ctx, flush := setupLogger(ctx)
		defer flush()

		return start(ctx)
	},
}

func start(ctx context.Context) error {
	a, err := newApp(ctx, appOptions{withMCP: true})
	if err != nil {
		return err
	}

	services := []srv.Service{srv.NewCleanup(a.Close)}

	if a.cfg.EnableCLI {
		rl, err := cli.NewReadLine(a.conv, a.commands, a.cfg.GetRuntimePath())
		if err != nil {
			_ = a.Close()
			return err
		}
		services = append(services, rl)
	}

	if a.cfg.EnableTelegram {
		bot, err := telegram.NewBot(ctx, config.NewTelegramConfig(ctx), a.conv, a.commands)
		if err != nil {
			_ = a.Close()
			return err
		}
		services = append(services, bot)
	}

	if len(services) == 1 {
		_ = a.Close()
		return errors.New("no surface enabled, set ENABLE_CLI or ENABLE_TELEGRAM")
	}

	log.FromCtx(ctx).Info().
		Bool("cli", a.cfg.EnableCLI).
		Bool("telegram", a.cfg.EnableTelegram).
		Msg("starting cnapse")

	return srv.Run(ctx, services)
}

func init() {
	rootCmd.AddCommand(startCmd)
}
