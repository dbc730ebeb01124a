package command

import (
	"github.com/sandevgo/cnapse/internal/core"
)

// Deps are the collaborators of the built-in commands. MCP may be nil.
type Deps struct {
	Sessions SessionControl
	Memory   MemoryView
	Messages MessageLister
	Notes    core.NoteRepository
	Tools    ToolLister
	MCP      MCPStatus
	Model    core.InferenceConfig
	Models   core.ModelLister
}

// NewRouter builds the command router with every built-in command.
func NewRouter(d Deps) *Router {
	var r *Router
	help := NewHelpCommand(func() []Info {
		cmds := r.ListCommands()
		out := make([]Info, 0, len(cmds))
		for _, c := range cmds {
			out = append(out, Info{Name: c.Name(), Description: c.Description()})
		}
		return out
	})

	commands := []core.Command{
		help,
		NewNewCommand(d.Sessions),
		NewClearCommand(d.Sessions),
		NewStatusCommand(d.Memory, d.Messages, d.Model),
		NewModelCommand(d.Model, d.Models),
		NewNotesCommand(d.Notes),
		NewToolsCommand(d.Tools),
	}
	if d.MCP != nil {
		commands = append(commands, NewMCPCommand(d.MCP))
	}

	r = New(commands)
	return r
}
