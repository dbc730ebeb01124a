package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sandevgo/cnapse/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider map[string]Definition

func (s stubProvider) GetDefinitions() map[string]Definition { return s }

const echoSchema = `
{
  "type": "object",
  "properties": {
    "text": { "type": "string" },
    "times": { "type": ["integer", "string"] }
  },
  "required": ["text"]
}
`

func echoProvider() stubProvider {
	return stubProvider{
		"echo": {
			Description: "echo text",
			Schema:      echoSchema,
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in struct {
					Text  string  `json:"text"`
					Times flexInt `json:"times"`
				}
				if err := decodeArgs(args, &in); err != nil {
					return "", err
				}
				n := int(in.Times)
				if n == 0 {
					n = 1
				}
				return strings.Repeat(in.Text, n), nil
			},
		},
		"boom": {
			Schema: `{"type": "object"}`,
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				panic("kaboom")
			},
		},
		"fail": {
			Schema: `{"type": "object"}`,
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				return "", errors.New("disk on fire")
			},
		},
	}
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	e, err := NewExecutor(echoProvider())
	require.NoError(t, err)
	return e
}

func TestExecutor_Execute(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		call       core.ToolCall
		wantOK     bool
		wantOutput string
		wantError  string
		wantKind   core.ErrorKind
	}{
		{
			name:       "success",
			call:       core.ToolCall{Name: "echo", Args: map[string]any{"text": "hi"}},
			wantOK:     true,
			wantOutput: "hi",
		},
		{
			name:       "inline string integer",
			call:       core.ToolCall{Name: "echo", Args: map[string]any{"text": "ab", "times": "3"}},
			wantOK:     true,
			wantOutput: "ababab",
		},
		{
			name:      "unknown tool",
			call:      core.ToolCall{Name: "teleport"},
			wantError: "unknown tool: teleport",
			wantKind:  core.ToolUnknown,
		},
		{
			name:      "missing required argument",
			call:      core.ToolCall{Name: "echo", Args: map[string]any{"times": 2}},
			wantError: "missing required argument: text",
			wantKind:  core.ToolArgumentMissing,
		},
		{
			name:      "nil args still validated",
			call:      core.ToolCall{Name: "echo"},
			wantError: "missing required argument: text",
			wantKind:  core.ToolArgumentMissing,
		},
		{
			name:      "wrong type",
			call:      core.ToolCall{Name: "echo", Args: map[string]any{"text": 42}},
			wantError: "invalid arguments:",
			wantKind:  core.ToolArgumentMissing,
		},
		{
			name:      "handler error",
			call:      core.ToolCall{Name: "fail"},
			wantError: "disk on fire",
			wantKind:  core.ToolExecutionFailed,
		},
		{
			name:      "panic is recovered",
			call:      core.ToolCall{Name: "boom"},
			wantError: "tool panicked: kaboom",
			wantKind:  core.ToolExecutionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Execute(ctx, tt.call)
			assert.Equal(t, tt.call.Name, res.Name)
			assert.Equal(t, tt.wantOK, res.Success)
			if tt.wantOK {
				assert.Equal(t, tt.wantOutput, res.Output)
				assert.Empty(t, res.Error)
				return
			}
			assert.Contains(t, res.Error, tt.wantError)
			assert.Equal(t, tt.wantKind, res.Kind)
		})
	}
}

func TestExecutor_TruncatesOutput(t *testing.T) {
	e := newTestExecutor(t)

	res := e.Execute(context.Background(), core.ToolCall{
		Name: "echo",
		Args: map[string]any{"text": "x", "times": 5000},
	})
	require.True(t, res.Success)
	assert.Less(t, len(res.Output), 2100)
	assert.Contains(t, res.Output, "[TRUNCATED 3000 bytes]")
	assert.True(t, strings.HasPrefix(res.Output, strings.Repeat("x", 500)))
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	// 3-byte runes put both cut points inside a rune
	input := strings.Repeat("€", 1000)
	out := truncate(input)

	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, "[TRUNCATED ")
	assert.True(t, strings.HasPrefix(out, strings.Repeat("€", 166)))
	assert.True(t, strings.HasSuffix(out, strings.Repeat("€", 500)))
}

func TestExecutor_DuplicateRegistration(t *testing.T) {
	_, err := NewExecutor(echoProvider(), stubProvider{"echo": {Schema: `{"type":"object"}`}})
	assert.ErrorContains(t, err, `"echo" registered twice`)
}

func TestExecutor_BadSchema(t *testing.T) {
	_, err := NewExecutor(stubProvider{"bad": {Schema: `{not json`}})
	assert.ErrorContains(t, err, "compile schema for bad")
}

type stubSource struct {
	specs []core.ToolSpec
	calls []string
}

func (s *stubSource) GetTools(ctx context.Context) ([]core.ToolSpec, error) {
	return s.specs, nil
}

func (s *stubSource) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	s.calls = append(s.calls, name)
	return "remote " + name, nil
}

func TestExecutor_RemoteSource(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	src := &stubSource{specs: []core.ToolSpec{
		{Name: "echo", Parameters: json.RawMessage(`{"type":"object"}`)},
		{Name: "weather", Parameters: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`)},
	}}

	added, err := e.AddSource(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	res := e.Execute(ctx, core.ToolCall{Name: "echo", Args: map[string]any{"text": "native"}})
	assert.Equal(t, "native", res.Output)

	res = e.Execute(ctx, core.ToolCall{Name: "weather"})
	assert.False(t, res.Success)
	assert.Equal(t, "missing required argument: city", res.Error)

	res = e.Execute(ctx, core.ToolCall{Name: "weather", Args: map[string]any{"city": "Oslo"}})
	assert.True(t, res.Success)
	assert.Equal(t, "remote weather", res.Output)
	assert.Equal(t, []string{"weather"}, src.calls)

	var names []string
	for _, s := range e.Specs() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"boom", "echo", "fail", "weather"}, names)
	assert.Len(t, e.RemoteSpecs(), 1)
}

func TestFlexTypes(t *testing.T) {
	var in struct {
		N    flexInt     `json:"n"`
		Tags flexStrings `json:"tags"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"n":"12","tags":"work, home"}`), &in))
	assert.Equal(t, flexInt(12), in.N)
	assert.Equal(t, flexStrings{"work", "home"}, in.Tags)

	require.NoError(t, json.Unmarshal([]byte(`{"n":3,"tags":["a","b"]}`), &in))
	assert.Equal(t, flexInt(3), in.N)
	assert.Equal(t, flexStrings{"a", "b"}, in.Tags)

	assert.Error(t, json.Unmarshal([]byte(`{"n":"many"}`), &in))
}
