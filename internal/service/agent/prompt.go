package agent

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/internal/router"
)

const toolUsage = `To use a tool, either reply with only a JSON object such as
{"tool": "tool_name", "args": {"key": "value"}}
or include one or more inline directives such as [TOOL: tool_name(key=value, other=value)].
Tool results are sent back to you before you give your final answer.`

// remoteSpecs is implemented by tool runners that also serve remote tools.
type remoteSpecs interface {
	RemoteSpecs() []core.ToolSpec
}

// SystemPrompt builds the handler prompt followed by the tools the handler
// may use. Remote tools are offered to every handler.
func SystemPrompt(h router.Handler, runner core.ToolRunner) string {
	var sb strings.Builder
	sb.WriteString(h.SystemPrompt())

	tools := handlerTools(h, runner)
	if len(tools) == 0 {
		return sb.String()
	}

	sb.WriteString("\n\nYou have access to the following tools:\n")
	for _, spec := range tools {
		fmt.Fprintf(&sb, "- %s(%s)", spec.Name, strings.Join(paramList(spec.Parameters), ", "))
		if spec.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(spec.Description)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(toolUsage)
	return sb.String()
}

func handlerTools(h router.Handler, runner core.ToolRunner) []core.ToolSpec {
	if runner == nil {
		return nil
	}

	declared := h.Tools()
	var out []core.ToolSpec
	for _, spec := range runner.Specs() {
		if slices.Contains(declared, spec.Name) {
			out = append(out, spec)
		}
	}
	if rs, ok := runner.(remoteSpecs); ok {
		for _, spec := range rs.RemoteSpecs() {
			if !slices.Contains(declared, spec.Name) {
				out = append(out, spec)
			}
		}
	}
	return out
}

// paramList renders schema properties as "name" or "name?" when optional.
func paramList(schema json.RawMessage) []string {
	if len(schema) == 0 {
		return nil
	}

	var s struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal(schema, &s); err != nil {
		return nil
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	// required first, each group alphabetical
	slices.SortStableFunc(names, func(a, b string) int {
		ra, rb := slices.Contains(s.Required, a), slices.Contains(s.Required, b)
		switch {
		case ra && !rb:
			return -1
		case rb && !ra:
			return 1
		}
		return 0
	})

	for i, name := range names {
		if !slices.Contains(s.Required, name) {
			names[i] = name + "?"
		}
	}
	return names
}
