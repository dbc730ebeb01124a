package command

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/cnapse/internal/core"
)

const (
	modelListTimeout = 15 * time.Second
	modelListMax     = 25
)

type ModelCommand struct {
	cfg       core.InferenceConfig
	lister    core.ModelLister
	formatter *ResponseFormatter
}

// NewModelCommand builds /model. lister may be nil when the provider cannot
// enumerate models.
func NewModelCommand(cfg core.InferenceConfig, lister core.ModelLister) *ModelCommand {
	return &ModelCommand{
		cfg:       cfg,
		lister:    lister,
		formatter: NewResponseFormatter(),
	}
}

func (c *ModelCommand) Name() string {
	return "model"
}

func (c *ModelCommand) Description() string {
	return "Show, list or change the current model"
}

func (c *ModelCommand) Execute(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return c.formatter.Combine(
			c.formatter.Info("Current Model"),
			c.formatter.Label("Provider", c.cfg.GetProvider()),
			c.formatter.Label("Model", c.cfg.GetModel()),
			c.formatter.Usage("/model [list | name]"),
		), nil
	}

	if args[0] == "list" {
		return c.list(ctx)
	}

	c.cfg.SetModel(args[0])
	return c.formatter.Success(fmt.Sprintf("Model changed to: `%s/%s`", c.cfg.GetProvider(), c.cfg.GetModel())), nil
}

func (c *ModelCommand) list(ctx context.Context) (string, error) {
	if c.lister == nil {
		return c.formatter.Warning("This provider cannot list models"), nil
	}

	ctx, cancel := context.WithTimeout(ctx, modelListTimeout)
	defer cancel()

	models, err := c.lister.Models(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list models: %w", err)
	}
	if len(models) == 0 {
		return c.formatter.Warning("The provider returned no models"), nil
	}

	current := c.cfg.GetModel()
	items := make([]string, 0, min(len(models), modelListMax))
	for i, m := range models {
		if i == modelListMax {
			break
		}
		item := fmt.Sprintf("`%s`", m.ID)
		if m.ContextLength > 0 {
			item += fmt.Sprintf(" (%d ctx)", m.ContextLength)
		}
		if m.ID == current {
			item += " ← current"
		}
		items = append(items, item)
	}

	more := ""
	if len(models) > modelListMax {
		more = fmt.Sprintf("…and %d more\n", len(models)-modelListMax)
	}

	return c.formatter.Combine(
		c.formatter.Info(fmt.Sprintf("Models (%s)", c.cfg.GetProvider())),
		c.formatter.List(items),
		more,
	), nil
}
