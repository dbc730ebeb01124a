package ui

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/internal/service/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTurn() agent.TurnResult {
	return agent.TurnResult{
		Handler: "filer",
		Reply:   "There are two files.\n",
		ToolResults: []core.ToolResult{
			{Name: "list_dir", Success: true, Output: "[FILE] a.txt (3 bytes)"},
			{Name: "read_file", Error: "missing required argument: path", Kind: core.ToolArgumentMissing},
			{Name: "file_info", Skipped: true, Kind: core.Cancelled},
		},
		Partial: true,
		Usage:   agent.Usage{InputTokens: 10, OutputTokens: 4, Calls: 1},
	}
}

func TestRenderTurn_Text(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	require.NoError(t, RenderTurn(&buf, sampleTurn(), FormatText))

	want := "[filer]\n" +
		"  ✓ list_dir\n" +
		"  ✗ read_file: missing required argument: path\n" +
		"  ~ file_info skipped\n" +
		"There are two files.\n" +
		"(turn cancelled, results are partial)\n"
	assert.Equal(t, want, buf.String())
}

func TestRenderTurn_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTurn(&buf, sampleTurn(), FormatJSON))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "filer", got["handler"])
	assert.Equal(t, true, got["partial"])
	assert.Len(t, got["tool_results"], 3)
}

func TestRenderTurn_Markdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTurn(&buf, sampleTurn(), FormatMarkdown))

	out := buf.String()
	assert.Contains(t, out, "**Handler**: `filer`")
	assert.Contains(t, out, "- `read_file`: failed (missing required argument: path)")
	assert.Contains(t, out, "- `file_info`: skipped")
	assert.Contains(t, out, "_Turn cancelled, results are partial._")
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat("json"))
	assert.False(t, ValidFormat("yaml"))
}
