package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/cnapse/pkg/log"
)

const (
	RetrieverSubstring = "substring"
	RetrieverBM25      = "bm25"
)

type AppConfig struct {
	RuntimePath string

	// Transport Flags
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"false"`
	EnableCLI      bool `env:"ENABLE_CLI" envDefault:"true"`

	// Warm retrieval backend: substring or bm25
	Retriever string `env:"CNAPSE_RETRIEVER" envDefault:"substring"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{RuntimePath: GetRuntimePath()}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	switch c.Retriever {
	case RetrieverSubstring, RetrieverBM25:
	default:
		log.FromCtx(ctx).Warn().Str("retriever", c.Retriever).Msg("unknown retriever, using substring")
		c.Retriever = RetrieverSubstring
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "cnapse.db")
}

func (c AppConfig) GetMCPConfigPath() string {
	return filepath.Join(c.RuntimePath, "mcp_config.json")
}

func (c AppConfig) GetHandlersPath() string {
	return filepath.Join(c.RuntimePath, "handlers.yaml")
}

func (c AppConfig) GetChatLogPath() string {
	return filepath.Join(c.RuntimePath, "chat.log")
}
