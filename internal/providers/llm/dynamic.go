package llm

import (
	"context"

	"github.com/sandevgo/cnapse/internal/core"
)

// DynamicProvider fills request defaults from the live inference config, so a
// model switch takes effect on the next request without rebuilding the backend.
type DynamicProvider struct {
	config  core.InferenceConfig
	backend Provider
}

var _ Provider = (*DynamicProvider)(nil)

func NewDynamicProvider(config core.InferenceConfig, backend Provider) *DynamicProvider {
	return &DynamicProvider{
		config:  config,
		backend: backend,
	}
}

func (d *DynamicProvider) Infer(ctx context.Context, req core.InferenceRequest) (core.InferenceResponse, error) {
	if req.Model == "" {
		req.Model = d.config.GetModel()
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = d.config.GetMaxTokens()
	}
	if req.Temperature == 0 {
		req.Temperature = d.config.GetTemperature()
	}
	return d.backend.Infer(ctx, req)
}

func (d *DynamicProvider) Models(ctx context.Context) ([]core.Model, error) {
	return d.backend.Models(ctx)
}

func (d *DynamicProvider) GetModel() string {
	return d.config.GetModel()
}

func (d *DynamicProvider) SetModel(model string) {
	d.config.SetModel(model)
}
