package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/internal/router"
	"github.com/sandevgo/cnapse/pkg/log"
)

type State int

const (
	StateRouting State = iota
	StateBuildingContext
	StateAwaitingInference
	StateParsingTools
	StateExecutingTools
	StateAwaitingFollowup
	StateCommitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRouting:
		return "routing"
	case StateBuildingContext:
		return "building context"
	case StateAwaitingInference:
		return "awaiting inference"
	case StateParsingTools:
		return "parsing tools"
	case StateExecutingTools:
		return "executing tools"
	case StateAwaitingFollowup:
		return "awaiting followup"
	case StateCommitting:
		return "committing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateHook observes every state transition of a turn. It runs on the turn's
// goroutine and must not block.
type StateHook func(State)

// Memory is the conversation memory a turn reads from and commits to.
type Memory interface {
	GetContext() []core.Message
	GetContextWithRetrieval(ctx context.Context, query string) []core.Message
	CommitTurn(ctx context.Context, user, assistant core.Message, handler string) (core.Message, core.Message, error)
	NewSession(ctx context.Context) error
	Clear(ctx context.Context) error
}

type Options struct {
	// Handler forces a handler by name, bypassing scoring when registered.
	Handler string
	// NoRetrieval limits the context to the hot window.
	NoRetrieval bool
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	Calls        int `json:"calls"`
}

func (u *Usage) add(resp core.InferenceResponse) {
	u.InputTokens += resp.InputTokens
	u.OutputTokens += resp.OutputTokens
	u.Calls++
}

type TurnResult struct {
	Handler     string            `json:"handler"`
	Reply       string            `json:"reply"`
	ToolResults []core.ToolResult `json:"tool_results,omitempty"`
	Partial     bool              `json:"partial,omitempty"`
	Usage       Usage             `json:"usage"`
	// Ambiguous is set when no handler matched and the fallback was used.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

const (
	toolResultPrefix = "[tool result] "
	toolResultsTitle = "Tool results:"
	followupPrompt   = "Use the tool results above to answer my request. Do not request more tools."
)

// Executor runs one turn at a time: route, build context, infer, run tools,
// follow up and commit. It is not safe for concurrent turns; Conversation
// serializes access.
type Executor struct {
	router *router.Router
	memory Memory
	llm    core.Inference
	tools  core.ToolRunner
	hook   StateHook
}

type ExecutorOption func(*Executor)

func WithStateHook(hook StateHook) ExecutorOption {
	return func(e *Executor) {
		e.hook = hook
	}
}

func NewExecutor(r *router.Router, memory Memory, llm core.Inference, tools core.ToolRunner, opts ...ExecutorOption) *Executor {
	e := &Executor{
		router: r,
		memory: memory,
		llm:    llm,
		tools:  tools,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes a single turn for input. Either the user message and the reply
// are both committed, or an error is returned and memory is left as it was.
func (e *Executor) Run(ctx context.Context, input string, opts Options) (TurnResult, error) {
	logger := log.FromCtx(ctx)
	var res TurnResult

	e.transition(ctx, StateRouting)
	sel := e.router.Select(ctx, input, opts.Handler)
	res.Handler = sel.Name()
	if sel.Fallback {
		res.Ambiguous = true
		logger.Info().Err(core.ErrRoutingAmbiguous).Str("handler", res.Handler).Msg("no handler matched the request")
	}

	e.transition(ctx, StateBuildingContext)
	var history []core.Message
	if opts.NoRetrieval {
		history = e.memory.GetContext()
	} else {
		history = e.memory.GetContextWithRetrieval(ctx, input)
	}

	messages := make([]core.Message, 0, len(history)+2)
	messages = append(messages, core.Message{Role: core.RoleSystem, Content: SystemPrompt(sel.Handler, e.tools)})
	messages = append(messages, flatten(history)...)
	messages = append(messages, core.Message{Role: core.RoleUser, Content: input})

	e.transition(ctx, StateAwaitingInference)
	first, err := e.infer(ctx, messages)
	if err != nil {
		return res, e.fail(ctx, err)
	}
	res.Usage.add(first)
	reply := first.Content

	e.transition(ctx, StateParsingTools)
	calls := ParseToolCalls(first.Content)

	if len(calls) > 0 {
		e.transition(ctx, StateExecutingTools)
		res.ToolResults, res.Partial = e.runTools(ctx, calls)

		if res.Partial {
			logger.Info().Int("skipped", countSkipped(res.ToolResults)).Msg("turn cancelled during tools, committing partial results")
			reply = fallbackReply(first.Content, res.ToolResults)
		} else {
			e.transition(ctx, StateAwaitingFollowup)
			followup := make([]core.Message, 0, len(messages)+2)
			followup = append(followup, messages...)
			followup = append(followup,
				core.Message{Role: core.RoleAssistant, Content: first.Content},
				core.Message{Role: core.RoleUser, Content: renderToolResults(res.ToolResults) + "\n\n" + followupPrompt},
			)

			second, err := e.infer(ctx, followup)
			switch {
			case err == nil && strings.TrimSpace(second.Content) != "":
				res.Usage.add(second)
				reply = second.Content
			case err == nil:
				res.Usage.add(second)
				reply = fallbackReply(first.Content, res.ToolResults)
			case core.KindOf(err) == core.Cancelled:
				return res, e.fail(ctx, err)
			default:
				logger.Warn().Err(err).Msg("followup inference failed, answering with raw tool results")
				reply = fallbackReply(first.Content, res.ToolResults)
			}
		}
	}

	e.transition(ctx, StateCommitting)
	// the outcome is decided; a late cancel must not split the turn
	commitCtx := context.WithoutCancel(ctx)
	user := core.Message{Role: core.RoleUser, Content: input}
	assistant := core.Message{Role: core.RoleAssistant, Content: reply, Metadata: turnMetadata(res)}
	if _, _, err := e.memory.CommitTurn(commitCtx, user, assistant, res.Handler); err != nil {
		if core.KindOf(err) == core.PersistenceFailure {
			err = fmt.Errorf("commit turn: %w", err)
		} else {
			err = core.E(core.PersistenceFailure, "commit turn", err)
		}
		return res, e.fail(ctx, err)
	}

	res.Reply = reply
	e.transition(ctx, StateDone)
	return res, nil
}

type inferOutcome struct {
	resp core.InferenceResponse
	err  error
}

var errInferenceAbandoned = errors.New("inference ended without a result")

// infer runs the inference call on its own goroutine and waits for its single
// outcome or for ctx to end, whichever comes first.
func (e *Executor) infer(ctx context.Context, messages []core.Message) (core.InferenceResponse, error) {
	ictx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan inferOutcome, 1)
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				done <- inferOutcome{err: fmt.Errorf("inference panicked: %v", r)}
			}
		}()

		resp, err := e.llm.Infer(ictx, core.InferenceRequest{Messages: messages})
		done <- inferOutcome{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return core.InferenceResponse{}, core.E(core.Cancelled, "infer", ctx.Err())
	case out, ok := <-done:
		switch {
		case !ok:
			return core.InferenceResponse{}, core.E(core.Cancelled, "infer", errInferenceAbandoned)
		case ctx.Err() != nil:
			return core.InferenceResponse{}, core.E(core.Cancelled, "infer", ctx.Err())
		case out.err == nil:
			return out.resp, nil
		case core.KindOf(out.err) == core.Cancelled:
			return core.InferenceResponse{}, core.E(core.Cancelled, "infer", out.err)
		case core.KindOf(out.err) == core.InferenceFailure:
			return core.InferenceResponse{}, out.err
		default:
			return core.InferenceResponse{}, core.E(core.InferenceFailure, "infer", out.err)
		}
	}
}

// runTools executes calls in order. A running tool is never interrupted; once
// ctx ends the remaining calls are skipped and the results are partial.
func (e *Executor) runTools(ctx context.Context, calls []core.ToolCall) ([]core.ToolResult, bool) {
	logger := log.FromCtx(ctx)
	toolCtx := context.WithoutCancel(ctx)

	results := make([]core.ToolResult, 0, len(calls))
	for i, call := range calls {
		if ctx.Err() != nil {
			for _, rest := range calls[i:] {
				results = append(results, core.ToolResult{
					Name:    rest.Name,
					Error:   "skipped: turn cancelled",
					Kind:    core.Cancelled,
					Skipped: true,
				})
			}
			return results, true
		}

		res := e.tools.Execute(toolCtx, call)
		if !res.Success {
			logger.Debug().Str("tool", call.Name).Str("kind", res.Kind.String()).Str("error", res.Error).Msg("tool call failed")
		}
		results = append(results, res)
	}
	// a cancel during the last tool still keeps what already ran
	return results, ctx.Err() != nil
}

func (e *Executor) transition(ctx context.Context, s State) {
	log.FromCtx(ctx).Debug().Str("state", s.String()).Msg("turn state")
	if e.hook != nil {
		e.hook(s)
	}
}

func (e *Executor) fail(ctx context.Context, err error) error {
	logger := log.FromCtx(ctx)
	if core.KindOf(err) == core.Cancelled {
		logger.Info().Msg("turn cancelled")
	} else {
		logger.Error().Err(err).Msg("turn failed")
	}
	e.transition(ctx, StateFailed)
	return err
}

// flatten rewrites tool-role messages as user messages; not every provider
// accepts a tool role.
func flatten(history []core.Message) []core.Message {
	out := make([]core.Message, 0, len(history))
	for _, m := range history {
		if m.Role == core.RoleTool {
			m.Role = core.RoleUser
			m.Content = toolResultPrefix + m.Content
		}
		out = append(out, m)
	}
	return out
}

func renderToolResults(results []core.ToolResult) string {
	var sb strings.Builder
	sb.WriteString(toolResultsTitle)
	for _, r := range results {
		sb.WriteString("\n")
		switch {
		case r.Skipped:
			fmt.Fprintf(&sb, "[%s] skipped", r.Name)
		case r.Success:
			fmt.Fprintf(&sb, "[%s] ok\n%s", r.Name, r.Output)
		default:
			fmt.Fprintf(&sb, "[%s] failed: %s", r.Name, r.Error)
		}
	}
	return sb.String()
}

func fallbackReply(first string, results []core.ToolResult) string {
	first = strings.TrimSpace(first)
	if first == "" {
		return renderToolResults(results)
	}
	return first + "\n\n" + renderToolResults(results)
}

func turnMetadata(res TurnResult) map[string]any {
	if len(res.ToolResults) == 0 {
		return nil
	}

	names := make([]string, 0, len(res.ToolResults))
	for _, r := range res.ToolResults {
		names = append(names, r.Name)
	}
	meta := map[string]any{"tools": names}
	if res.Partial {
		meta["partial"] = true
	}
	return meta
}

func countSkipped(results []core.ToolResult) int {
	n := 0
	for _, r := range results {
		if r.Skipped {
			n++
		}
	}
	return n
}
