package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/cnapse/internal/providers/mcp"
)

type MCPStatus interface {
	Status() []mcp.ServerStatus
}

type MCPCommand struct {
	mcp       MCPStatus
	formatter *ResponseFormatter
}

func NewMCPCommand(status MCPStatus) *MCPCommand {
	return &MCPCommand{
		mcp:       status,
		formatter: NewResponseFormatter(),
	}
}

func (c *MCPCommand) Name() string {
	return "mcp"
}

func (c *MCPCommand) Description() string {
	return "Show configured MCP servers"
}

func (c *MCPCommand) Execute(ctx context.Context, args []string) (string, error) {
	servers := c.mcp.Status()
	if len(servers) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("MCP Servers"),
			c.formatter.Label("Status", "no servers configured"),
			c.formatter.Tip("Add servers to mcp_config.json in the runtime directory"),
		), nil
	}

	items := make([]string, 0, len(servers))
	for _, s := range servers {
		switch {
		case s.Connected:
			items = append(items, fmt.Sprintf("**%s**: connected, %d tools", s.Name, s.Tools))
		case s.Err != nil:
			items = append(items, fmt.Sprintf("**%s**: failed (%s)", s.Name, oneLine(s.Err.Error(), 120)))
		default:
			items = append(items, fmt.Sprintf("**%s**: disabled", s.Name))
		}
	}

	return c.formatter.Combine(
		c.formatter.Info("MCP Servers"),
		c.formatter.List(items),
	), nil
}
