package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

const copyToClipboardSchema = `
{
  "type": "object",
  "properties": {
    "text": { "type": "string", "description": "The text to place on the clipboard" }
  },
  "required": ["text"]
}
`

const readClipboardSchema = `{"type": "object", "properties": {}}`

var errClipboardUnavailable = errors.New("clipboard is not available on this system")

type Clipboard struct {
	read      func() (string, error)
	write     func(string) error
	available func() bool
}

func NewClipboard() *Clipboard {
	return &Clipboard{
		read:      clipboard.ReadAll,
		write:     clipboard.WriteAll,
		available: func() bool { return !clipboard.Unsupported },
	}
}

func (c *Clipboard) Copy(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Text string `json:"text"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if !c.available() {
		return "", errClipboardUnavailable
	}
	if err := c.write(input.Text); err != nil {
		return "", fmt.Errorf("write clipboard: %w", err)
	}
	return fmt.Sprintf("Copied %d characters to the clipboard", len([]rune(input.Text))), nil
}

func (c *Clipboard) Read(ctx context.Context, args json.RawMessage) (string, error) {
	if !c.available() {
		return "", errClipboardUnavailable
	}
	text, err := c.read()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	if text == "" {
		return "(clipboard is empty)", nil
	}
	return text, nil
}

func (c *Clipboard) GetDefinitions() map[string]Definition {
	return map[string]Definition{
		"copy_to_clipboard": {"Copy text to the system clipboard", copyToClipboardSchema, c.Copy},
		"read_clipboard":    {"Read text from the system clipboard", readClipboardSchema, c.Read},
	}
}
