package core

import "context"

type InferenceRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
	Stop        []string
}

type InferenceResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	StopReason   string
}

// Inference submits a conversation and returns the model's reply.
// Only system, user and assistant roles may appear in the request.
type Inference interface {
	Infer(ctx context.Context, req InferenceRequest) (InferenceResponse, error)
}

type Model struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextLength int    `json:"context_length"`
}

type ModelLister interface {
	Models(ctx context.Context) ([]Model, error)
}

// ToolRunner executes a single tool call. Failures are reported in the result,
// never as a Go error.
type ToolRunner interface {
	Execute(ctx context.Context, call ToolCall) ToolResult
	Specs() []ToolSpec
}

// ToolSource is a provider of remotely hosted tools.
type ToolSource interface {
	GetTools(ctx context.Context) ([]ToolSpec, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}
