package command

import (
	"context"
	"strings"

	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/pkg/log"
)

// Router dispatches slash commands. Input that does not start with "/" is not
// a command and is left to the caller.
type Router struct {
	commands  map[string]core.Command
	order     []core.Command
	formatter *ResponseFormatter
}

func New(commands []core.Command) *Router {
	r := &Router{
		commands:  make(map[string]core.Command),
		formatter: NewResponseFormatter(),
	}

	for _, cmd := range commands {
		if _, dup := r.commands[cmd.Name()]; dup {
			continue
		}
		r.commands[cmd.Name()] = cmd
		r.order = append(r.order, cmd)
	}
	return r
}

func (r *Router) Execute(ctx context.Context, input string) (string, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", false
	}

	parts := strings.Fields(input)
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	args := parts[1:]

	cmd, ok := r.commands[name]
	if !ok {
		return r.formatter.Combine(
			r.formatter.Warning("Unknown command: /"+name),
			r.formatter.Tip("Type /help for available commands"),
		), true
	}

	log.FromCtx(ctx).Debug().Str("command", name).Strs("args", args).Msg("executing command")

	result, err := cmd.Execute(ctx, args)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("command", name).Msg("command failed")
		return r.formatter.Error(name, err), true
	}
	return result, true
}

// ListCommands returns the commands in registration order.
func (r *Router) ListCommands() []core.Command {
	out := make([]core.Command, len(r.order))
	copy(out, r.order)
	return out
}

// IsExit reports whether input asks the surface to quit.
func IsExit(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "/exit", "/quit":
		return true
	}
	return false
}
