package router

import (
	"context"
	"fmt"
	"math"

	"github.com/sandevgo/cnapse/pkg/log"
)

// Handler is a capability a turn can be dispatched to.
type Handler interface {
	Name() string
	Description() string
	Score(request string) float64
	Tools() []string
	SystemPrompt() string
}

// Selection is the outcome of routing one request.
type Selection struct {
	Handler  Handler
	Score    float64
	Forced   bool
	Fallback bool
}

func (s Selection) Name() string {
	return s.Handler.Name()
}

type Router struct {
	handlers []Handler
	byName   map[string]Handler
	fallback Handler
}

// New registers handlers in order. Order matters: on equal scores the
// earlier handler wins.
func New(fallback string, handlers ...Handler) (*Router, error) {
	r := &Router{
		handlers: make([]Handler, 0, len(handlers)),
		byName:   make(map[string]Handler, len(handlers)),
	}

	for _, h := range handlers {
		if _, dup := r.byName[h.Name()]; dup {
			return nil, fmt.Errorf("handler %q registered twice", h.Name())
		}
		r.handlers = append(r.handlers, h)
		r.byName[h.Name()] = h
	}

	fb, ok := r.byName[fallback]
	if !ok {
		return nil, fmt.Errorf("fallback handler %q is not registered", fallback)
	}
	r.fallback = fb
	return r, nil
}

// Select picks the handler for request. A registered forced name bypasses
// scoring. Otherwise the strictly highest score wins, and when nothing scores
// above zero the fallback handler is used.
func (r *Router) Select(ctx context.Context, request, forced string) Selection {
	logger := log.FromCtx(ctx)

	if forced != "" {
		if h, ok := r.byName[forced]; ok {
			return Selection{Handler: h, Score: 1, Forced: true}
		}
		logger.Warn().Str("handler", forced).Msg("forced handler is not registered, routing by score")
	}

	var (
		best      Handler
		bestScore float64
	)
	for _, h := range r.handlers {
		score := clamp(h.Score(request))
		if score > bestScore {
			best, bestScore = h, score
		}
	}

	if best == nil {
		logger.Debug().Str("handler", r.fallback.Name()).Msg("no handler matched, using fallback")
		return Selection{Handler: r.fallback, Fallback: true}
	}
	return Selection{Handler: best, Score: bestScore}
}

func (r *Router) Get(name string) (Handler, bool) {
	h, ok := r.byName[name]
	return h, ok
}

func (r *Router) Handlers() []Handler {
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

func (r *Router) Fallback() Handler {
	return r.fallback
}

func clamp(score float64) float64 {
	switch {
	case math.IsNaN(score) || score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
