package installer

import (
	"strconv"
	"strings"

	"github.com/sandevgo/cnapse/internal/config"
)

const (
	keyProvider = "LLM_PROVIDER"
	keyModel    = "LLM_MODEL"
	keyChannel  = "CNAPSE_CHANNEL" // only used while the wizard runs

	channelCLI      = "cli"
	channelTelegram = "telegram"
)

type InstallState struct {
	EnvVars map[string]string
}

func NewInstallState() *InstallState {
	return &InstallState{
		EnvVars: make(map[string]string),
	}
}

func (s *InstallState) Provider() string {
	return s.EnvVars[keyProvider]
}

func (s *InstallState) telegram() bool {
	return s.EnvVars[keyChannel] == channelTelegram
}

// Finalize derives the transport flags and drops intermediate and empty values.
func (s *InstallState) Finalize() {
	s.EnvVars["ENABLE_TELEGRAM"] = strconv.FormatBool(s.telegram())
	s.EnvVars["ENABLE_CLI"] = "true"
	delete(s.EnvVars, keyChannel)

	for k, v := range s.EnvVars {
		if strings.TrimSpace(v) == "" {
			delete(s.EnvVars, k)
		}
	}
}

// apiKeyVar names the variable holding the key of provider and whether the
// key may be left empty.
func apiKeyVar(provider string) (name, title string, optional bool) {
	switch provider {
	case config.ProviderOpenAI:
		return "OPENAI_API_KEY", "OpenAI API Key", false
	case config.ProviderAnthropic:
		return "ANTHROPIC_API_KEY", "Anthropic API Key", false
	case config.ProviderOpenRouter:
		return "OPENROUTER_API_KEY", "OpenRouter API Key", false
	case config.ProviderOllama:
		return "OLLAMA_API_KEY", "Ollama API Key", true
	default:
		return "LLM_API_KEY", "API Key", true
	}
}

// inferenceConfig builds the config the collected answers describe.
func (s *InstallState) inferenceConfig() *config.InferenceConfig {
	return &config.InferenceConfig{
		Provider:         s.Provider(),
		Model:            s.EnvVars[keyModel],
		MaxTokens:        2048,
		Temperature:      0.7,
		OpenAIAPIKey:     s.EnvVars["OPENAI_API_KEY"],
		AnthropicAPIKey:  s.EnvVars["ANTHROPIC_API_KEY"],
		OpenRouterAPIKey: s.EnvVars["OPENROUTER_API_KEY"],
		OllamaBaseURL:    s.EnvVars["OLLAMA_BASE_URL"],
		OllamaAPIKey:     s.EnvVars["OLLAMA_API_KEY"],
		BaseURL:          s.EnvVars["LLM_BASE_URL"],
		APIKey:           s.EnvVars["LLM_API_KEY"],
	}
}
