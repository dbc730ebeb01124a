package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/pkg/log"
)

type Timeouts struct {
	Connect  time.Duration
	ToolList time.Duration
	ToolCall time.Duration
}

func NewDefaultTimeouts() *Timeouts {
	return &Timeouts{
		Connect:  30 * time.Second,
		ToolList: 5 * time.Second,
		ToolCall: 2 * time.Minute,
	}
}

type TransportFactory func(TransportType) (Transport, error)

type Option func(*Manager)

func WithTransportFactory(f TransportFactory) Option {
	return func(m *Manager) { m.transports = f }
}

func WithTimeouts(t *Timeouts) Option {
	return func(m *Manager) { m.timeouts = t }
}

type managedClient struct {
	*client.Client
	once sync.Once
	err  error
}

func (mc *managedClient) Close() error {
	mc.once.Do(func() {
		if mc.Client != nil {
			mc.err = mc.Client.Close()
		}
	})
	return mc.err
}

// Manager connects to the servers of mcp_config.json and serves their tools.
// Servers that fail to connect are logged and skipped.
type Manager struct {
	config     Config
	transports TransportFactory
	timeouts   *Timeouts

	mu      sync.RWMutex
	clients map[string]*managedClient
	tools   map[string]string // tool name -> server name
	specs   []core.ToolSpec
	failed  map[string]error
}

var _ core.ToolSource = (*Manager)(nil)

func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		config:     cfg,
		transports: NewTransport,
		timeouts:   NewDefaultTimeouts(),
		clients:    make(map[string]*managedClient),
		tools:      make(map[string]string),
		failed:     make(map[string]error),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect opens every enabled server and indexes its tools.
func (m *Manager) Connect(ctx context.Context) {
	logger := log.FromCtx(ctx)

	names := make([]string, 0, len(m.config.MCPServers))
	for name := range m.config.MCPServers {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		srv := m.config.MCPServers[name]
		if srv.Disabled {
			continue
		}

		logger.Info().Str("server", name).Msg("starting mcp connection")
		cli, err := m.connect(ctx, srv)
		if err != nil {
			logger.Warn().Err(err).Str("server", name).Msg("mcp server unavailable")
			m.mu.Lock()
			m.failed[name] = err
			m.mu.Unlock()
			continue
		}

		m.mu.Lock()
		m.clients[name] = cli
		m.mu.Unlock()
	}

	if err := m.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to list mcp tools")
	}
}

func (m *Manager) connect(ctx context.Context, srv ServerConfig) (*managedClient, error) {
	tType, err := srv.GetTransport()
	if err != nil {
		return nil, err
	}
	transport, err := m.transports(tType)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, m.timeouts.Connect)
	defer cancel()

	cli, err := transport(cctx, srv)
	if err != nil {
		return nil, fmt.Errorf("transport creation failed: %w", err)
	}
	return &managedClient{Client: cli}, nil
}

// Refresh rebuilds the tool index. On a name clash between servers the
// server that sorts first wins.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.RLock()
	names := make([]string, 0, len(m.clients))
	snapshot := make(map[string]*managedClient, len(m.clients))
	for name, cli := range m.clients {
		names = append(names, name)
		snapshot[name] = cli
	}
	m.mu.RUnlock()
	slices.Sort(names)

	type listing struct {
		tools []mcpproto.Tool
		err   error
	}
	results := make([]listing, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, c *managedClient) {
			defer wg.Done()
			tctx, cancel := context.WithTimeout(ctx, m.timeouts.ToolList)
			defer cancel()

			resp, err := c.ListTools(tctx, mcpproto.ListToolsRequest{})
			if err != nil {
				results[i] = listing{err: err}
				return
			}
			results[i] = listing{tools: resp.Tools}
		}(i, snapshot[name])
	}
	wg.Wait()

	index := make(map[string]string)
	var specs []core.ToolSpec
	var errs []error
	for i, res := range results {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", names[i], res.err))
			continue
		}
		for _, t := range res.tools {
			if _, taken := index[t.Name]; taken {
				continue
			}
			index[t.Name] = names[i]
			specs = append(specs, toSpec(t))
		}
	}

	m.mu.Lock()
	m.tools = index
	m.specs = specs
	m.mu.Unlock()

	return errors.Join(errs...)
}

func toSpec(t mcpproto.Tool) core.ToolSpec {
	var schema json.RawMessage
	if len(t.RawInputSchema) > 0 {
		schema = t.RawInputSchema
	} else if data, err := json.Marshal(t.InputSchema); err == nil {
		schema = data
	}
	return core.ToolSpec{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  schema,
	}
}

func (m *Manager) GetTools(ctx context.Context) ([]core.ToolSpec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.specs), nil
}

func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	m.mu.RLock()
	server, ok := m.tools[name]
	cli := m.clients[server]
	m.mu.RUnlock()

	if !ok || cli == nil {
		return "", fmt.Errorf("tool not found: %s", name)
	}

	req := mcpproto.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	tctx, cancel := context.WithTimeout(ctx, m.timeouts.ToolCall)
	defer cancel()

	res, err := cli.CallTool(tctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", server, err)
	}

	output := contentText(res.Content)
	if res.IsError {
		if output == "" {
			output = "tool execution failed"
		}
		return "", errors.New(output)
	}
	return output, nil
}

func contentText(contents []mcpproto.Content) string {
	var parts []string
	for _, content := range contents {
		switch c := content.(type) {
		case mcpproto.TextContent:
			parts = append(parts, c.Text)
		case *mcpproto.TextContent:
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

type ServerStatus struct {
	Name      string
	Connected bool
	Tools     int
	Err       error
}

// Status reports every configured server in name order.
func (m *Manager) Status() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, server := range m.tools {
		counts[server]++
	}

	var out []ServerStatus
	for name := range m.config.MCPServers {
		_, connected := m.clients[name]
		out = append(out, ServerStatus{
			Name:      name,
			Connected: connected,
			Tools:     counts[name],
			Err:       m.failed[name],
		})
	}
	slices.SortFunc(out, func(a, b ServerStatus) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*managedClient)
	m.tools = make(map[string]string)
	m.specs = nil
	m.mu.Unlock()

	var errs []error
	for name, cli := range clients {
		if err := cli.Close(); err != nil {
			log.FromCtx(ctx).Error().Err(err).Str("server", name).Msg("failed to close client")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
