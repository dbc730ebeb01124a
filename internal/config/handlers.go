package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/sandevgo/cnapse/internal/router"
	"github.com/sandevgo/cnapse/pkg/log"
	"gopkg.in/yaml.v3"
)

// LoadHandlerOverrides reads handlers.yaml. A missing file yields no
// overrides. Entries for handlers not in known are dropped with a warning.
func LoadHandlerOverrides(ctx context.Context, path string, known []string) (map[string]router.Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read handlers file: %w", err)
	}

	var overrides map[string]router.Override
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse handlers file: %w", err)
	}

	for name := range overrides {
		if !slices.Contains(known, name) {
			log.FromCtx(ctx).Warn().Str("handler", name).Msg("ignoring override for unknown handler")
			delete(overrides, name)
		}
	}
	return overrides, nil
}
