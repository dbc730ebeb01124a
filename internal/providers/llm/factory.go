package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/cnapse/internal/config"
	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/pkg/log"
)

// Provider is an inference backend that can also list its models.
type Provider interface {
	core.Inference
	core.ModelLister
}

// NewProvider creates the backend selected by LLM_PROVIDER.
func NewProvider(ctx context.Context, cfg *config.InferenceConfig) (Provider, error) {
	log.FromCtx(ctx).Info().
		Str("provider", cfg.GetProvider()).
		Str("model", cfg.GetModel()).
		Msg("starting llm provider")

	model := cfg.GetModel()
	switch cfg.GetProvider() {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, model), nil
	case config.ProviderAnthropic:
		return NewAnthropic(cfg.AnthropicAPIKey, model), nil
	case config.ProviderOpenRouter:
		return NewOpenRouter(cfg.OpenRouterAPIKey, model), nil
	case config.ProviderOllama:
		return NewOllama(cfg.OllamaBaseURL, cfg.OllamaAPIKey, model), nil
	case config.ProviderOpenAICompatible, config.ProviderCustom:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%s provider needs LLM_BASE_URL", cfg.GetProvider())
		}
		return NewCustomOpenAI(cfg.BaseURL, cfg.APIKey, model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.GetProvider())
	}
}
