package command

import (
	"context"
	"fmt"
)

type HelpCommand struct {
	list      func() []Info
	formatter *ResponseFormatter
}

// Info is the name and description of a command.
type Info struct {
	Name        string
	Description string
}

func NewHelpCommand(list func() []Info) *HelpCommand {
	return &HelpCommand{list: list, formatter: NewResponseFormatter()}
}

func (c *HelpCommand) Name() string {
	return "help"
}

func (c *HelpCommand) Description() string {
	return "Show available commands"
}

func (c *HelpCommand) Execute(ctx context.Context, args []string) (string, error) {
	cmds := c.list()
	items := make([]string, 0, len(cmds)+1)
	for _, cmd := range cmds {
		items = append(items, fmt.Sprintf("`/%s` %s", cmd.Name, cmd.Description))
	}
	items = append(items, "`/exit` Quit")

	return c.formatter.Combine(
		c.formatter.Info("Commands"),
		c.formatter.List(items),
		c.formatter.Tip("Anything else is sent to the assistant"),
	), nil
}
