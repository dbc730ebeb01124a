package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/internal/service/agent"
	"github.com/sandevgo/cnapse/internal/service/command"
	"github.com/sandevgo/cnapse/internal/service/ui"
	"github.com/sandevgo/cnapse/pkg/log"
	"github.com/sandevgo/cnapse/pkg/srv"
)

// TurnRunner runs one conversation turn, waiting for any turn in progress.
type TurnRunner interface {
	Run(ctx context.Context, input string, opts agent.Options) (agent.TurnResult, error)
}

type ReadLine struct {
	turns    TurnRunner
	commands core.CmdRouter
	rl       *readline.Instance
}

var _ srv.Service = (*ReadLine)(nil)

func NewReadLine(turns TurnRunner, commands core.CmdRouter, runtimePath string) (*ReadLine, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(runtimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "/exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init readline: %w", err)
	}

	return &ReadLine{
		turns:    turns,
		commands: commands,
		rl:       rl,
	}, nil
}

// Start reads lines until /exit, EOF or ctx ends. /exit stops the whole
// process with srv.ErrExit.
func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("readline chat started, type /help for commands or /exit to quit")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return srv.ErrExit
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return srv.ErrExit
			}
			return err
		}

		if done := r.handle(ctx, r.rl.Stdout(), line); done {
			return srv.ErrExit
		}
	}
}

// handle processes one input line and reports whether the user asked to quit.
func (r *ReadLine) handle(ctx context.Context, out io.Writer, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if command.IsExit(line) {
		return true
	}

	if reply, ok := r.commands.Execute(ctx, line); ok {
		fmt.Fprintln(out, strings.TrimSpace(reply))
		return false
	}

	res, err := r.turns.Run(ctx, line, agent.Options{})
	if err != nil {
		if core.KindOf(err) == core.Cancelled {
			fmt.Fprintln(out, "cancelled")
			return false
		}
		fmt.Fprintf(out, "Error: %v\n", err)
		return false
	}

	if err := ui.RenderTurn(out, res, ui.FormatText); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to render reply")
	}
	return false
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
