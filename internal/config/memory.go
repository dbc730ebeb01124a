package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/pkg/log"
)

type MemoryConfig struct {
	HotTurns            int     `env:"CNAPSE_HOT_TURNS" envDefault:"3"`
	WarmChunks          int     `env:"CNAPSE_WARM_CHUNKS" envDefault:"10"`
	SimilarityThreshold float64 `env:"CNAPSE_SIMILARITY_THRESHOLD" envDefault:"0.7"`
	WarmRetrieval       bool    `env:"CNAPSE_WARM_RETRIEVAL" envDefault:"true"`
}

var _ core.MemoryConfig = (*MemoryConfig)(nil)

func NewMemoryConfig(ctx context.Context) *MemoryConfig {
	c := &MemoryConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Memory config")
	}
	if c.HotTurns < 0 {
		c.HotTurns = 0
	}
	if c.WarmChunks < 0 {
		c.WarmChunks = 0
	}
	return c
}

func (c *MemoryConfig) GetHotTurns() int                { return c.HotTurns }
func (c *MemoryConfig) GetWarmChunks() int              { return c.WarmChunks }
func (c *MemoryConfig) GetSimilarityThreshold() float64 { return c.SimilarityThreshold }
func (c *MemoryConfig) IsWarmRetrievalEnabled() bool    { return c.WarmRetrieval }
