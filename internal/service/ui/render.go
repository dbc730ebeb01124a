package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/internal/service/agent"
)

const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// ValidFormat reports whether f is an output format RenderTurn understands.
func ValidFormat(f string) bool {
	switch f {
	case FormatText, FormatJSON, FormatMarkdown:
		return true
	}
	return false
}

// RenderTurn writes the outcome of a turn to w in the given format.
func RenderTurn(w io.Writer, res agent.TurnResult, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case FormatMarkdown:
		_, err := io.WriteString(w, markdown(res))
		return err
	default:
		return text(w, res)
	}
}

func text(w io.Writer, res agent.TurnResult) error {
	handlerColor.Fprintf(w, "[%s]", res.Handler)
	if res.Ambiguous {
		dimColor.Fprint(w, " (no handler matched)")
	}
	fmt.Fprintln(w)

	for _, r := range res.ToolResults {
		switch {
		case r.Skipped:
			skipColor.Fprintf(w, "  ~ %s skipped\n", r.Name)
		case r.Success:
			okColor.Fprintf(w, "  ✓ %s\n", r.Name)
		default:
			failColor.Fprintf(w, "  ✗ %s: %s\n", r.Name, r.Error)
		}
	}

	_, err := fmt.Fprintln(w, strings.TrimSpace(res.Reply))
	if res.Partial {
		dimColor.Fprintln(w, "(turn cancelled, results are partial)")
	}
	return err
}

func markdown(res agent.TurnResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Handler**: `%s`\n\n", res.Handler)
	sb.WriteString(strings.TrimSpace(res.Reply))
	sb.WriteString("\n")

	if len(res.ToolResults) > 0 {
		sb.WriteString("\n### Tools\n\n")
		for _, r := range res.ToolResults {
			fmt.Fprintf(&sb, "- `%s`: %s\n", r.Name, ToolStatus(r))
		}
	}
	if res.Partial {
		sb.WriteString("\n_Turn cancelled, results are partial._\n")
	}
	return sb.String()
}

// ToolStatus is a one-word outcome for a tool result, with the error when it failed.
func ToolStatus(r core.ToolResult) string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Success:
		return "ok"
	default:
		return "failed (" + r.Error + ")"
	}
}
