package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sandevgo/cnapse/internal/core"
)

var inlineToolRe = regexp.MustCompile(`\[TOOL:\s*(\w+)\(([^)]*)\)\]`)

// ParseToolCalls extracts tool directives from a model reply.
//
// A reply that is, as a whole, a JSON object with a non-empty "tool" string
// (optionally inside a ```json fence) yields exactly that call. Otherwise every
// inline [TOOL: name(k=v, ...)] directive is returned in order of appearance.
func ParseToolCalls(reply string) []core.ToolCall {
	if call, ok := parseJSONDirective(reply); ok {
		return []core.ToolCall{call}
	}

	matches := inlineToolRe.FindAllStringSubmatch(reply, -1)
	if len(matches) == 0 {
		return nil
	}

	calls := make([]core.ToolCall, 0, len(matches))
	for _, m := range matches {
		calls = append(calls, core.ToolCall{
			Name: m[1],
			Args: parseInlineArgs(m[2]),
		})
	}
	return calls
}

func parseJSONDirective(reply string) (core.ToolCall, bool) {
	body := stripFence(strings.TrimSpace(reply))
	if !strings.HasPrefix(body, "{") {
		return core.ToolCall{}, false
	}

	var raw struct {
		Tool any            `json:"tool"`
		Args map[string]any `json:"args"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		// args of the wrong shape still name a tool
		var loose map[string]any
		if json.Unmarshal([]byte(body), &loose) != nil {
			return core.ToolCall{}, false
		}
		raw.Tool = loose["tool"]
		raw.Args = nil
	}

	name, ok := raw.Tool.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return core.ToolCall{}, false
	}
	if raw.Args == nil {
		raw.Args = map[string]any{}
	}
	return core.ToolCall{Name: strings.TrimSpace(name), Args: raw.Args}, true
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		lang := strings.TrimSpace(s[:nl])
		if lang == "" || strings.EqualFold(lang, "json") {
			s = s[nl+1:]
		}
	}
	return strings.TrimSpace(s)
}

func parseInlineArgs(list string) map[string]any {
	args := make(map[string]any)
	for i, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, found := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			args[fmt.Sprintf("arg%d", i)] = unquote(part)
			continue
		}
		args[key] = unquote(strings.TrimSpace(value))
	}
	return args
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
