package config

import (
	"context"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/pkg/log"
)

const (
	ProviderOllama           = "ollama"
	ProviderOpenAI           = "openai"
	ProviderAnthropic        = "anthropic"
	ProviderOpenRouter       = "openrouter"
	ProviderOpenAICompatible = "openai_compatible"
	ProviderCustom           = "custom"
)

var defaultModels = map[string]string{
	ProviderOllama:     "qwen2.5:0.5b",
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderAnthropic:  "claude-sonnet-4-20250514",
	ProviderOpenRouter: "qwen/qwen-2.5-coder-32b-instruct",
}

// DefaultModel is the model used for provider when LLM_MODEL is unset.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

type InferenceConfig struct {
	Provider    string  `env:"LLM_PROVIDER" envDefault:"ollama"`
	Model       string  `env:"LLM_MODEL"`
	MaxTokens   int     `env:"LLM_MAX_TOKENS" envDefault:"2048"`
	Temperature float64 `env:"LLM_TEMPERATURE" envDefault:"0.7"`

	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`
	OllamaBaseURL    string `env:"OLLAMA_BASE_URL" envDefault:"http://127.0.0.1:11434"`
	OllamaAPIKey     string `env:"OLLAMA_API_KEY"`

	// openai_compatible and custom endpoints
	BaseURL string `env:"LLM_BASE_URL"`
	APIKey  string `env:"LLM_API_KEY"`

	mu sync.RWMutex
}

var _ core.InferenceConfig = (*InferenceConfig)(nil)

func NewInferenceConfig(ctx context.Context) *InferenceConfig {
	c := &InferenceConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Inference config")
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2048
	}
	return c
}

func (c *InferenceConfig) GetProvider() string {
	return c.Provider
}

// GetModel returns the configured model, or the provider default when unset.
func (c *InferenceConfig) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Model != "" {
		return c.Model
	}
	return defaultModels[c.Provider]
}

// SetModel switches the model for subsequent requests. It is not persisted.
func (c *InferenceConfig) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Model = model
}

func (c *InferenceConfig) GetMaxTokens() int {
	return c.MaxTokens
}

func (c *InferenceConfig) GetTemperature() float64 {
	return c.Temperature
}
