package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/pkg/log"
	"github.com/xeipuuv/gojsonschema"
)

const (
	maxOutputLen  = 2000
	outputHeadLen = 500
)

type nativeTool struct {
	spec    core.ToolSpec
	schema  *gojsonschema.Schema
	handler Handler
}

type remoteTool struct {
	spec   core.ToolSpec
	schema *gojsonschema.Schema
	source core.ToolSource
}

// Executor dispatches tool calls to native handlers or remote tool sources.
// A call never returns a Go error; every failure is folded into the result.
type Executor struct {
	native map[string]*nativeTool
	remote map[string]*remoteTool
	order  []string
}

var _ core.ToolRunner = (*Executor)(nil)

func NewExecutor(providers ...Provider) (*Executor, error) {
	e := &Executor{
		native: make(map[string]*nativeTool),
		remote: make(map[string]*remoteTool),
	}
	for _, p := range providers {
		if err := e.Register(p); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Register adds every tool of p. Names must be unique among native tools.
func (e *Executor) Register(p Provider) error {
	defs := p.GetDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		def := defs[name]
		if _, dup := e.native[name]; dup {
			return fmt.Errorf("tool %q registered twice", name)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(def.Schema))
		if err != nil {
			return fmt.Errorf("compile schema for %s: %w", name, err)
		}
		e.native[name] = &nativeTool{
			spec: core.ToolSpec{
				Name:        name,
				Description: def.Description,
				Parameters:  json.RawMessage(def.Schema),
			},
			schema:  schema,
			handler: def.Handler,
		}
		e.order = append(e.order, name)
	}
	return nil
}

// AddSource exposes the tools of a remote source. Native tools win on a
// name clash. It returns how many tools were added.
func (e *Executor) AddSource(ctx context.Context, src core.ToolSource) (int, error) {
	specs, err := src.GetTools(ctx)
	if err != nil {
		return 0, fmt.Errorf("list remote tools: %w", err)
	}

	logger := log.FromCtx(ctx)
	added := 0
	for _, spec := range specs {
		if _, clash := e.native[spec.Name]; clash {
			logger.Warn().Str("tool", spec.Name).Msg("remote tool shadowed by native tool")
			continue
		}
		if _, dup := e.remote[spec.Name]; dup {
			logger.Warn().Str("tool", spec.Name).Msg("remote tool already registered")
			continue
		}

		rt := &remoteTool{spec: spec, source: src}
		if len(spec.Parameters) > 0 {
			schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(spec.Parameters))
			if err != nil {
				logger.Debug().Err(err).Str("tool", spec.Name).Msg("remote schema not usable, skipping validation")
			} else {
				rt.schema = schema
			}
		}
		e.remote[spec.Name] = rt
		e.order = append(e.order, spec.Name)
		added++
	}
	return added, nil
}

// Specs lists every tool, native tools first.
func (e *Executor) Specs() []core.ToolSpec {
	out := make([]core.ToolSpec, 0, len(e.order))
	for _, name := range e.order {
		if spec, ok := e.Lookup(name); ok {
			out = append(out, spec)
		}
	}
	return out
}

// RemoteSpecs lists the tools served by remote sources.
func (e *Executor) RemoteSpecs() []core.ToolSpec {
	var out []core.ToolSpec
	for _, name := range e.order {
		if rt, ok := e.remote[name]; ok {
			out = append(out, rt.spec)
		}
	}
	return out
}

func (e *Executor) Lookup(name string) (core.ToolSpec, bool) {
	if t, ok := e.native[name]; ok {
		return t.spec, true
	}
	if t, ok := e.remote[name]; ok {
		return t.spec, true
	}
	return core.ToolSpec{}, false
}

func (e *Executor) Execute(ctx context.Context, call core.ToolCall) (res core.ToolResult) {
	res.Name = call.Name
	logger := log.FromCtx(ctx).With().Str("tool", call.Name).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("tool panicked")
			res = failed(call.Name, core.ToolExecutionFailed, fmt.Sprintf("tool panicked: %v", r))
		}
	}()

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}

	var (
		schema *gojsonschema.Schema
		run    func() (string, error)
	)
	switch {
	case e.native[call.Name] != nil:
		t := e.native[call.Name]
		schema = t.schema
		run = func() (string, error) {
			raw, err := json.Marshal(args)
			if err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			return t.handler(ctx, raw)
		}
	case e.remote[call.Name] != nil:
		t := e.remote[call.Name]
		schema = t.schema
		run = func() (string, error) {
			return t.source.CallTool(ctx, call.Name, args)
		}
	default:
		return failed(call.Name, core.ToolUnknown, "unknown tool: "+call.Name)
	}

	if schema != nil {
		if msg := validate(schema, args); msg != "" {
			return failed(call.Name, core.ToolArgumentMissing, msg)
		}
	}

	logger.Debug().Interface("args", args).Msg("executing tool")
	out, err := run()
	if err != nil {
		logger.Debug().Err(err).Msg("tool failed")
		kind := core.ToolExecutionFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			kind = core.Cancelled
		}
		return failed(call.Name, kind, truncate(err.Error()))
	}

	res.Success = true
	res.Output = truncate(out)
	return res
}

// validate returns an empty string when args satisfy schema. Missing
// required properties are reported before any other violation.
func validate(schema *gojsonschema.Schema, args map[string]any) string {
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return "invalid arguments: " + err.Error()
	}
	if result.Valid() {
		return ""
	}

	var other []string
	for _, re := range result.Errors() {
		if re.Type() == "required" {
			if prop, ok := re.Details()["property"].(string); ok {
				return "missing required argument: " + prop
			}
		}
		other = append(other, re.String())
	}
	return "invalid arguments: " + strings.Join(other, "; ")
}

func failed(name string, kind core.ErrorKind, msg string) core.ToolResult {
	return core.ToolResult{
		Name:  name,
		Error: msg,
		Kind:  kind,
	}
}

func truncate(input string) string {
	if len(input) <= maxOutputLen {
		return input
	}

	// cut on rune boundaries
	headEnd := outputHeadLen
	for headEnd > 0 && !utf8.RuneStart(input[headEnd]) {
		headEnd--
	}
	tailStart := len(input) - (maxOutputLen - outputHeadLen)
	for tailStart < len(input) && !utf8.RuneStart(input[tailStart]) {
		tailStart++
	}
	return fmt.Sprintf("%s\n\n... [TRUNCATED %d bytes] ...\n\n%s", input[:headEnd], tailStart-headEnd, input[tailStart:])
}
