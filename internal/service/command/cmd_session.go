package command

import (
	"context"
)

type SessionControl interface {
	NewSession(ctx context.Context) error
	Clear(ctx context.Context) error
}

type NewCommand struct {
	sessions  SessionControl
	formatter *ResponseFormatter
}

func NewNewCommand(sessions SessionControl) *NewCommand {
	return &NewCommand{sessions: sessions, formatter: NewResponseFormatter()}
}

func (c *NewCommand) Name() string {
	return "new"
}

func (c *NewCommand) Description() string {
	return "Start a new conversation, keeping history"
}

func (c *NewCommand) Execute(ctx context.Context, args []string) (string, error) {
	if err := c.sessions.NewSession(ctx); err != nil {
		return "", err
	}
	return c.formatter.Success("Started new conversation"), nil
}

type ClearCommand struct {
	sessions  SessionControl
	formatter *ResponseFormatter
}

func NewClearCommand(sessions SessionControl) *ClearCommand {
	return &ClearCommand{sessions: sessions, formatter: NewResponseFormatter()}
}

func (c *ClearCommand) Name() string {
	return "clear"
}

func (c *ClearCommand) Description() string {
	return "Delete the current conversation and start over"
}

func (c *ClearCommand) Execute(ctx context.Context, args []string) (string, error) {
	if err := c.sessions.Clear(ctx); err != nil {
		return "", err
	}
	return c.formatter.Success("Conversation cleared"), nil
}
