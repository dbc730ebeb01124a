package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sandevgo/cnapse/internal/core"
)

// Handler runs one tool with its JSON encoded arguments.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Definition describes a native tool. Schema is a JSON Schema for the
// argument object.
type Definition struct {
	Description string
	Schema      string
	Handler     Handler
}

// Provider is a group of native tools.
type Provider interface {
	GetDefinitions() map[string]Definition
}

func decodeArgs(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// flexInt accepts a JSON number or a numeric string. Inline directives carry
// every value as a string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("not a number: %s", s)
	}
	*f = flexInt(n)
	return nil
}

// flexStrings accepts a JSON array of strings or a single string holding
// comma or space separated values.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*f = list
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected a list of strings: %w", err)
	}
	*f = strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	return nil
}

// Builtin returns every native tool provider.
func Builtin(workDir string, messages MessageSearcher, notes core.NoteRepository) []Provider {
	return []Provider{
		NewFilesystem(workDir),
		NewShell(workDir),
		NewProcess(),
		NewNetwork(),
		NewClipboard(),
		NewFetch(),
		NewMemory(messages, notes),
	}
}
