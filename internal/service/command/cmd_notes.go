package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/internal/providers/tools"
)

const notesLimit = 20

type NotesCommand struct {
	notes     core.NoteRepository
	formatter *ResponseFormatter
}

func NewNotesCommand(notes core.NoteRepository) *NotesCommand {
	return &NotesCommand{
		notes:     notes,
		formatter: NewResponseFormatter(),
	}
}

func (c *NotesCommand) Name() string {
	return "notes"
}

func (c *NotesCommand) Description() string {
	return "Show saved notes, optionally filtered by tags"
}

func (c *NotesCommand) Execute(ctx context.Context, args []string) (string, error) {
	tags := make([]string, 0, len(args))
	for _, a := range args {
		if t := strings.TrimPrefix(a, "#"); t != "" {
			tags = append(tags, t)
		}
	}

	notes, err := c.notes.GetNotes(ctx, tags, notesLimit)
	if err != nil {
		return "", err
	}

	title := "Notes"
	if len(tags) > 0 {
		title = fmt.Sprintf("Notes tagged #%s", strings.Join(tags, " #"))
	}
	if len(notes) == 0 {
		return c.formatter.Combine(
			c.formatter.Info(title),
			"No notes yet.\n",
			c.formatter.Tip("Ask the assistant to remember something"),
		), nil
	}

	return c.formatter.Combine(
		c.formatter.Info(title),
		tools.FormatNotes(notes),
	), nil
}
