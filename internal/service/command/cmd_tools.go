package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/cnapse/internal/core"
)

type ToolLister interface {
	Specs() []core.ToolSpec
	RemoteSpecs() []core.ToolSpec
}

type ToolsCommand struct {
	tools     ToolLister
	formatter *ResponseFormatter
}

func NewToolsCommand(tools ToolLister) *ToolsCommand {
	return &ToolsCommand{
		tools:     tools,
		formatter: NewResponseFormatter(),
	}
}

func (c *ToolsCommand) Name() string {
	return "tools"
}

func (c *ToolsCommand) Description() string {
	return "List the tools the assistant can use"
}

func (c *ToolsCommand) Execute(ctx context.Context, args []string) (string, error) {
	remote := make(map[string]bool)
	for _, s := range c.tools.RemoteSpecs() {
		remote[s.Name] = true
	}

	var native, external []string
	for _, s := range c.tools.Specs() {
		item := fmt.Sprintf("**%s** %s", s.Name, oneLine(s.Description, 100))
		if remote[s.Name] {
			external = append(external, item)
		} else {
			native = append(native, item)
		}
	}

	sections := []string{
		c.formatter.Info(fmt.Sprintf("Tools (%d)", len(native)+len(external))),
		c.formatter.List(native),
	}
	if len(external) > 0 {
		sections = append(sections, c.formatter.Info("MCP Tools"), c.formatter.List(external))
	}
	return c.formatter.Combine(sections...), nil
}
