package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(name string) *server.MCPServer {
	srv := server.NewMCPServer(name, "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(mcpproto.NewTool("weather",
		mcpproto.WithDescription("Weather for a city"),
		mcpproto.WithString("city", mcpproto.Required()),
	), func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
		city, _ := req.GetArguments()["city"].(string)
		return mcpproto.NewToolResultText(name + ": sunny in " + city), nil
	})

	srv.AddTool(mcpproto.NewTool("broken"), func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
		return mcpproto.NewToolResultError("backend down"), nil
	})
	return srv
}

// inProcess routes every server name to its in-process MCP server.
func inProcess(servers map[string]*server.MCPServer) TransportFactory {
	return func(t TransportType) (Transport, error) {
		return func(ctx context.Context, cfg ServerConfig) (*client.Client, error) {
			srv, ok := servers[cfg.Command]
			if !ok {
				return nil, errors.New("connection refused")
			}
			cli, err := client.NewInProcessClient(srv)
			if err != nil {
				return nil, err
			}
			return startAndInitialize(ctx, cli)
		}, nil
	}
}

func TestManager_ToolsAndCalls(t *testing.T) {
	ctx := context.Background()
	cfg := Config{MCPServers: map[string]ServerConfig{
		"alpha": {Command: "alpha"},
		"beta":  {Command: "beta"},
		"gone":  {Command: "missing"},
		"off":   {Command: "alpha", Disabled: true},
	}}

	m := NewManager(cfg, WithTransportFactory(inProcess(map[string]*server.MCPServer{
		"alpha": newTestServer("alpha"),
		"beta":  newTestServer("beta"),
	})))
	m.Connect(ctx)
	t.Cleanup(func() { _ = m.Close(ctx) })

	specs, err := m.GetTools(ctx)
	require.NoError(t, err)
	var names []string
	for _, s := range specs {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"weather", "broken"}, names)
	for _, s := range specs {
		if s.Name == "weather" {
			assert.Contains(t, string(s.Parameters), `"city"`)
		}
	}

	out, err := m.CallTool(ctx, "weather", map[string]any{"city": "Oslo"})
	require.NoError(t, err)
	assert.Equal(t, "alpha: sunny in Oslo", out)

	_, err = m.CallTool(ctx, "broken", nil)
	assert.EqualError(t, err, "backend down")

	_, err = m.CallTool(ctx, "nope", nil)
	assert.EqualError(t, err, "tool not found: nope")

	status := m.Status()
	require.Len(t, status, 4)
	assert.Equal(t, ServerStatus{Name: "alpha", Connected: true, Tools: 2}, status[0])
	assert.Equal(t, "beta", status[1].Name)
	assert.True(t, status[1].Connected)
	assert.Zero(t, status[1].Tools)
	assert.Equal(t, "gone", status[2].Name)
	assert.False(t, status[2].Connected)
	assert.Error(t, status[2].Err)
	assert.False(t, status[3].Connected)
}

func TestManager_CloseDropsTools(t *testing.T) {
	ctx := context.Background()
	m := NewManager(
		Config{MCPServers: map[string]ServerConfig{"alpha": {Command: "alpha"}}},
		WithTransportFactory(inProcess(map[string]*server.MCPServer{"alpha": newTestServer("alpha")})),
	)
	m.Connect(ctx)
	require.NoError(t, m.Close(ctx))

	specs, err := m.GetTools(ctx)
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestServerConfig_GetTransport(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		want    TransportType
		wantErr bool
	}{
		{name: "command", cfg: ServerConfig{Command: "npx"}, want: TransportStdio},
		{name: "url", cfg: ServerConfig{URL: "http://localhost:8080/mcp"}, want: TransportHTTP},
		{name: "explicit sse", cfg: ServerConfig{URL: "http://localhost/sse", Transport: TransportSSE}, want: TransportSSE},
		{name: "sse without url", cfg: ServerConfig{Transport: TransportSSE}, wantErr: true},
		{name: "unknown", cfg: ServerConfig{Command: "x", Transport: "carrier-pigeon"}, wantErr: true},
		{name: "empty", cfg: ServerConfig{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.GetTransport()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp_config.json")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.MCPServers)
	_, err = os.Stat(path)
	require.NoError(t, err, "default config is written")

	cfg.MCPServers["fs"] = ServerConfig{Command: "npx", Args: []string{"-y", "server-filesystem"}}
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "failed to parse mcp config")
}
