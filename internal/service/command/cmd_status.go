package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/cnapse/internal/core"
)

// MemoryView exposes the state of the current conversation memory.
type MemoryView interface {
	SessionID() string
	HotLen() int
	MaxHot() int
	Summary() string
}

type MessageLister interface {
	GetMessages(ctx context.Context, sessionID string, limit int) ([]core.Message, error)
}

type StatusCommand struct {
	memory    MemoryView
	messages  MessageLister
	cfg       core.InferenceConfig
	formatter *ResponseFormatter
}

func NewStatusCommand(memory MemoryView, messages MessageLister, cfg core.InferenceConfig) *StatusCommand {
	return &StatusCommand{
		memory:    memory,
		messages:  messages,
		cfg:       cfg,
		formatter: NewResponseFormatter(),
	}
}

func (c *StatusCommand) Name() string {
	return "status"
}

func (c *StatusCommand) Description() string {
	return "Show session, memory and model status"
}

func (c *StatusCommand) Execute(ctx context.Context, args []string) (string, error) {
	sessionID := c.memory.SessionID()

	handled := "none"
	if sessionID != "" {
		msgs, err := c.messages.GetMessages(ctx, sessionID, 0)
		if err != nil {
			return "", err
		}
		handled = handlerCounts(msgs)
	} else {
		sessionID = "not started"
	}

	lines := []string{
		c.formatter.Info("Status"),
		c.formatter.Label("Session", sessionID),
	}
	if summary := c.memory.Summary(); summary != "" {
		lines = append(lines, c.formatter.Label("Recent topics", summary))
	}
	lines = append(lines,
		c.formatter.Label("Turns by handler", handled),
		c.formatter.Label("Hot window", fmt.Sprintf("%d/%d messages", c.memory.HotLen(), c.memory.MaxHot())),
		c.formatter.Label("Provider", c.cfg.GetProvider()),
		c.formatter.Label("Model", c.cfg.GetModel()),
	)
	return c.formatter.Combine(lines...), nil
}

// handlerCounts counts answered turns per handler, e.g. "filer=2, shell=1".
func handlerCounts(msgs []core.Message) string {
	counts := make(map[string]int)
	for _, m := range msgs {
		if m.Role == core.RoleAssistant && m.Handler != "" {
			counts[m.Handler]++
		}
	}
	if len(counts) == 0 {
		return "none"
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return strings.Join(parts, ", ")
}
