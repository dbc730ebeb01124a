package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sandevgo/cnapse/internal/config"
	"github.com/sandevgo/cnapse/internal/providers/llm"
	"github.com/sandevgo/cnapse/internal/providers/mcp"
	"github.com/sandevgo/cnapse/internal/providers/tools"
	"github.com/sandevgo/cnapse/internal/router"
	"github.com/sandevgo/cnapse/internal/service/agent"
	"github.com/sandevgo/cnapse/internal/service/command"
	"github.com/sandevgo/cnapse/internal/service/memory"
	"github.com/sandevgo/cnapse/internal/storage/sqlite"
	"github.com/sandevgo/cnapse/pkg/log"
	"github.com/sandevgo/cnapse/pkg/tokens"
)

const (
	backfillSessions = 20
	mcpCloseTimeout  = 5 * time.Second
)

type appOptions struct {
	inMemory bool
	withMCP  bool
	hook     agent.StateHook
}

// app holds everything a surface needs to run turns.
type app struct {
	cfg      *config.AppConfig
	store    *sqlite.Store
	memory   *memory.ContextManager
	conv     *agent.Conversation
	commands *command.Router
	closers  []func() error
}

func loadConfig(ctx context.Context) (*config.AppConfig, error) {
	runtimePath := config.GetRuntimePath()
	if err := config.EnsureRuntime(runtimePath); err != nil {
		return nil, err
	}
	if err := config.LoadDotEnv(runtimePath); err != nil {
		return nil, err
	}
	return config.NewAppConfig(ctx), nil
}

func openStore(ctx context.Context, cfg *config.AppConfig) (*sqlite.Store, error) {
	db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
	if err != nil {
		return nil, err
	}
	return sqlite.NewStore(db), nil
}

func newCounter(ctx context.Context) tokens.Counter {
	tk := tokens.NewTiktoken()
	if err := tk.Err(); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("tiktoken unavailable, counting words instead")
		return tokens.Words{}
	}
	return tk
}

func newApp(ctx context.Context, opts appOptions) (_ *app, err error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	memCfg := config.NewMemoryConfig(ctx)
	infCfg := config.NewInferenceConfig(ctx)

	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// Storage
	dbPath := cfg.GetDatabasePath()
	if opts.inMemory {
		dbPath = sqlite.InMemory
	}
	db, err := sqlite.NewDB(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	a.store = sqlite.NewStore(db)
	a.closers = append(a.closers, a.store.Close)

	// Memory
	counter := newCounter(ctx)
	var retriever memory.Retriever
	switch cfg.Retriever {
	case config.RetrieverBM25:
		kr, err := memory.NewKeywordRetriever(counter)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kr.Close)
		n, err := kr.Backfill(ctx, a.store, a.store, backfillSessions)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("keyword index backfill failed")
		}
		log.FromCtx(ctx).Debug().Int("chunks", n).Msg("keyword index ready")
		retriever = kr
	default:
		retriever = memory.NewSubstringRetriever(a.store)
	}

	a.memory = memory.NewContextManager(a.store, memory.TunablesFrom(memCfg),
		memory.WithRetriever(retriever),
		memory.WithTokenCounter(counter),
	)
	if err := a.memory.Resume(ctx); err != nil {
		return nil, err
	}

	// Tools
	workDir, werr := os.Getwd()
	if werr != nil {
		workDir = cfg.GetRuntimePath()
	}
	toolExec, err := tools.NewExecutor(tools.Builtin(workDir, a.store, a.store)...)
	if err != nil {
		return nil, err
	}

	var manager *mcp.Manager
	if opts.withMCP {
		mcpCfg, err := mcp.LoadConfig(cfg.GetMCPConfigPath())
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("mcp config ignored")
		} else if len(mcpCfg.MCPServers) > 0 {
			manager = mcp.NewManager(mcpCfg)
			manager.Connect(ctx)
			a.closers = append(a.closers, func() error {
				closeCtx, cancel := context.WithTimeout(context.Background(), mcpCloseTimeout)
				defer cancel()
				return manager.Close(closeCtx)
			})
			n, err := toolExec.AddSource(ctx, manager)
			if err != nil {
				log.FromCtx(ctx).Warn().Err(err).Msg("some remote tools were not registered")
			}
			log.FromCtx(ctx).Info().Int("tools", n).Msg("remote tools registered")
		}
	}

	// Inference
	backend, err := llm.NewProvider(ctx, infCfg)
	if err != nil {
		return nil, err
	}
	provider := llm.NewDynamicProvider(infCfg, backend)

	// Routing
	known := make([]string, 0)
	for _, h := range router.Builtin(nil) {
		known = append(known, h.Name())
	}
	overrides, err := config.LoadHandlerOverrides(ctx, cfg.GetHandlersPath(), known)
	if err != nil {
		return nil, err
	}
	r := router.NewDefault(overrides)

	var execOpts []agent.ExecutorOption
	if opts.hook != nil {
		execOpts = append(execOpts, agent.WithStateHook(opts.hook))
	}
	exec := agent.NewExecutor(r, a.memory, provider, toolExec, execOpts...)
	a.conv = agent.NewConversation(exec, a.memory)

	deps := command.Deps{
		Sessions: a.conv,
		Memory:   a.memory,
		Messages: a.store,
		Notes:    a.store,
		Tools:    toolExec,
		Model:    infCfg,
		Models:   provider,
	}
	if manager != nil {
		deps.MCP = manager
	}
	a.commands = command.NewRouter(deps)

	log.FromCtx(ctx).Debug().
		Str("provider", infCfg.GetProvider()).
		Str("model", infCfg.GetModel()).
		Str("retriever", cfg.Retriever).
		Str("session", a.memory.SessionID()).
		Msg("cnapse ready")

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
