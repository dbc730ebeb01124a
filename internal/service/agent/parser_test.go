package agent

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/internal/router"
	"github.com/stretchr/testify/assert"
)

func TestParseToolCalls(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []core.ToolCall
	}{
		{
			name:  "no directives",
			reply: "Sure, here is the answer.",
			want:  nil,
		},
		{
			name:  "single inline",
			reply: "Looking now. [TOOL: list_dir(path=/tmp)]",
			want:  []core.ToolCall{{Name: "list_dir", Args: map[string]any{"path": "/tmp"}}},
		},
		{
			name:  "inline in order",
			reply: "[TOOL: read_file(path=a.txt)] then [TOOL: read_file(path=b.txt)]",
			want: []core.ToolCall{
				{Name: "read_file", Args: map[string]any{"path": "a.txt"}},
				{Name: "read_file", Args: map[string]any{"path": "b.txt"}},
			},
		},
		{
			name:  "positional and quoted values",
			reply: `[TOOL: write_file("notes.md", content='hello world', 42)]`,
			want: []core.ToolCall{{Name: "write_file", Args: map[string]any{
				"arg0":    "notes.md",
				"content": "hello world",
				"arg2":    "42",
			}}},
		},
		{
			name:  "positions count empty slots",
			reply: "[TOOL: kill_process(, 1234)]",
			want:  []core.ToolCall{{Name: "kill_process", Args: map[string]any{"arg1": "1234"}}},
		},
		{
			name:  "no arguments",
			reply: "[TOOL:read_clipboard()]",
			want:  []core.ToolCall{{Name: "read_clipboard", Args: map[string]any{}}},
		},
		{
			name:  "whole reply json",
			reply: ` {"tool": "http_get", "args": {"url": "https://example.com"}} `,
			want:  []core.ToolCall{{Name: "http_get", Args: map[string]any{"url": "https://example.com"}}},
		},
		{
			name:  "fenced json",
			reply: "```json\n{\"tool\": \"get_notes\", \"args\": {\"limit\": 3}}\n```",
			want:  []core.ToolCall{{Name: "get_notes", Args: map[string]any{"limit": float64(3)}}},
		},
		{
			name:  "json without args",
			reply: `{"tool": "list_processes"}`,
			want:  []core.ToolCall{{Name: "list_processes", Args: map[string]any{}}},
		},
		{
			name:  "json wins over inline text inside it",
			reply: `{"tool": "save_note", "args": {"content": "[TOOL: run_command(command=rm)]"}}`,
			want: []core.ToolCall{{Name: "save_note", Args: map[string]any{
				"content": "[TOOL: run_command(command=rm)]",
			}}},
		},
		{
			name:  "json with empty tool falls through to inline",
			reply: `{"tool": "", "note": "[TOOL: get_env(name=HOME)]"}`,
			want:  []core.ToolCall{{Name: "get_env", Args: map[string]any{"name": "HOME"}}},
		},
		{
			name:  "json embedded in prose is not a directive",
			reply: `Call {"tool": "list_dir"} maybe`,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseToolCalls(tt.reply)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseToolCalls() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type specRunner struct {
	stubTools
	specs  []core.ToolSpec
	remote []core.ToolSpec
}

func (s *specRunner) Specs() []core.ToolSpec       { return append(s.specs, s.remote...) }
func (s *specRunner) RemoteSpecs() []core.ToolSpec { return s.remote }

func TestSystemPrompt(t *testing.T) {
	r := router.NewDefault(nil)
	filer, ok := r.Get(router.Filer)
	assert.True(t, ok)

	runner := &specRunner{
		specs: []core.ToolSpec{
			{Name: "read_file", Description: "Read a file", Parameters: json.RawMessage(`{"properties":{"path":{},"limit":{}},"required":["path"]}`)},
			{Name: "run_command", Description: "Run a shell command", Parameters: json.RawMessage(`{"properties":{"command":{}},"required":["command"]}`)},
		},
		remote: []core.ToolSpec{
			{Name: "weather", Description: "Forecast", Parameters: json.RawMessage(`{"properties":{"city":{}}}`)},
		},
	}

	prompt := SystemPrompt(filer, runner)

	assert.True(t, strings.HasPrefix(prompt, filer.SystemPrompt()))
	assert.Contains(t, prompt, "- read_file(path, limit?): Read a file\n")
	assert.Contains(t, prompt, "- weather(city?): Forecast\n")
	assert.NotContains(t, prompt, "run_command")
	assert.Contains(t, prompt, "[TOOL: tool_name(")

	assert.Equal(t, filer.SystemPrompt(), SystemPrompt(filer, &stubTools{}))
}
