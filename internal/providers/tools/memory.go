package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandevgo/cnapse/internal/core"
)

const searchMemorySchema = `
{
  "type": "object",
  "properties": {
    "query": { "type": "string", "description": "Text to look for in earlier conversations" },
    "limit": { "type": ["integer", "string"], "description": "Maximum number of messages (default 5)" }
  },
  "required": ["query"]
}
`

const saveNoteSchema = `
{
  "type": "object",
  "properties": {
    "content": { "type": "string", "description": "The note text" },
    "tags": {
      "type": ["array", "string"],
      "items": { "type": "string" },
      "description": "Tags for the note"
    }
  },
  "required": ["content"]
}
`

const getNotesSchema = `
{
  "type": "object",
  "properties": {
    "tags": {
      "type": ["array", "string"],
      "items": { "type": "string" },
      "description": "Only notes with any of these tags"
    },
    "limit": { "type": ["integer", "string"], "description": "Maximum number of notes (default 10)" }
  }
}
`

const (
	defaultSearchLimit = 5
	defaultNotesLimit  = 10
	snippetLen         = 300
)

type MessageSearcher interface {
	SearchMessages(ctx context.Context, query string, limit int) ([]core.Message, error)
}

// Memory exposes the durable store to the model.
type Memory struct {
	messages MessageSearcher
	notes    core.NoteRepository
}

func NewMemory(messages MessageSearcher, notes core.NoteRepository) *Memory {
	return &Memory{messages: messages, notes: notes}
}

func (m *Memory) SearchMemory(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Query string  `json:"query"`
		Limit flexInt `json:"limit"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	limit := int(input.Limit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	msgs, err := m.messages.SearchMessages(ctx, input.Query, limit)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("Nothing found for %q.", input.Query), nil
	}

	var sb strings.Builder
	for _, msg := range msgs {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", msg.CreatedAt.Format("2006-01-02 15:04"), msg.Role, snippet(msg.Content))
	}
	return sb.String(), nil
}

func (m *Memory) SaveNote(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Content string      `json:"content"`
		Tags    flexStrings `json:"tags"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.Content) == "" {
		return "", fmt.Errorf("note content must not be empty")
	}

	id, err := m.notes.SaveNote(ctx, input.Content, input.Tags)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Saved note %s", id), nil
}

func (m *Memory) GetNotes(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Tags  flexStrings `json:"tags"`
		Limit flexInt     `json:"limit"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	limit := int(input.Limit)
	if limit <= 0 {
		limit = defaultNotesLimit
	}

	notes, err := m.notes.GetNotes(ctx, input.Tags, limit)
	if err != nil {
		return "", err
	}
	if len(notes) == 0 {
		return "No notes found.", nil
	}
	return FormatNotes(notes), nil
}

// FormatNotes renders notes one per line, newest first.
func FormatNotes(notes []core.Note) string {
	var sb strings.Builder
	for _, n := range notes {
		fmt.Fprintf(&sb, "- [%s] %s", n.CreatedAt.Format("2006-01-02"), n.Content)
		if len(n.Tags) > 0 {
			fmt.Fprintf(&sb, " #%s", strings.Join(n.Tags, " #"))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "..."
}

func (m *Memory) GetDefinitions() map[string]Definition {
	return map[string]Definition{
		"search_memory": {"Search earlier conversations for a phrase", searchMemorySchema, m.SearchMemory},
		"save_note":     {"Save a note with optional tags", saveNoteSchema, m.SaveNote},
		"get_notes":     {"List saved notes, optionally filtered by tags", getNotesSchema, m.GetNotes},
	}
}
