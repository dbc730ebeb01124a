package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sandevgo/cnapse/internal/core"
)

type OpenAICompatible struct {
	baseProvider
	authHeader   string
	authPrefix   string
	extraHeaders map[string]string
}

type OpenAICompatibleConfig struct {
	Name         string
	BaseURL      string
	APIKey       string
	Model        string
	AuthHeader   string // e.g., "Authorization"
	AuthPrefix   string // e.g., "Bearer "
	ExtraHeaders map[string]string
}

var _ Provider = (*OpenAICompatible)(nil)

func NewOpenAICompatible(cfg OpenAICompatibleConfig) *OpenAICompatible {
	name := cfg.Name
	if name == "" {
		name = "openai_compatible"
	}
	return &OpenAICompatible{
		baseProvider: newBaseProvider(name, cfg.BaseURL, cfg.APIKey, cfg.Model),
		authHeader:   cfg.AuthHeader,
		authPrefix:   cfg.AuthPrefix,
		extraHeaders: cfg.ExtraHeaders,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stop        []string      `json:"stop,omitempty"`
}

func (o *OpenAICompatible) headers() map[string]string {
	headers := make(map[string]string)
	if o.authHeader != "" && o.apiKey != "" {
		headers[o.authHeader] = o.authPrefix + o.apiKey
	}
	for k, v := range o.extraHeaders {
		headers[k] = v
	}
	return headers
}

func (o *OpenAICompatible) Infer(ctx context.Context, req core.InferenceRequest) (core.InferenceResponse, error) {
	payload := chatRequest{
		Model:       o.modelFor(req),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := o.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload, o.headers())
	if err != nil {
		return core.InferenceResponse{}, o.failure(ctx, err)
	}
	defer resp.Body.Close()

	data, err := readOK(resp)
	if err != nil {
		return core.InferenceResponse{}, o.failure(ctx, err)
	}

	out, err := parseOpenAIResponse(data)
	if err != nil {
		return core.InferenceResponse{}, o.failure(ctx, err)
	}
	return out, nil
}

func parseOpenAIResponse(data []byte) (core.InferenceResponse, error) {
	var result struct {
		Choices []struct {
			Message      chatMessage `json:"message"`
			FinishReason string      `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return core.InferenceResponse{}, fmt.Errorf("decode: %w", err)
	}
	if result.Error != nil {
		return core.InferenceResponse{}, errors.New(result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return core.InferenceResponse{}, fmt.Errorf("empty choices: %s", string(data))
	}

	choice := result.Choices[0]
	return core.InferenceResponse{
		Content:      choice.Message.Content,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		StopReason:   choice.FinishReason,
	}, nil
}

// Models lists /v1/models, the listing every OpenAI style server exposes.
func (o *OpenAICompatible) Models(ctx context.Context) ([]core.Model, error) {
	resp, err := o.doRequest(ctx, http.MethodGet, "/v1/models", nil, o.headers())
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	data, err := readOK(resp)
	if err != nil {
		return nil, err
	}

	var apiResp struct {
		Data []struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			ContextLength int    `json:"context_length"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	models := make([]core.Model, 0, len(apiResp.Data))
	for _, m := range apiResp.Data {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		models = append(models, core.Model{
			ID:            m.ID,
			Name:          name,
			ContextLength: m.ContextLength,
		})
	}
	return models, nil
}
