package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type TransportType string

const (
	TransportHTTP  TransportType = "http"
	TransportSSE   TransportType = "sse"
	TransportStdio TransportType = "stdio"
)

type Config struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// ServerConfig represents an entry in mcp_config.json
type ServerConfig struct {
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	URL       string            `json:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Transport TransportType     `json:"transport,omitempty"`
	Disabled  bool              `json:"disabled,omitempty"`
}

// GetTransport picks the explicit transport, else http for a URL and stdio
// for a command.
func (c *ServerConfig) GetTransport() (TransportType, error) {
	switch c.Transport {
	case TransportHTTP, TransportSSE:
		if c.URL == "" {
			return "", fmt.Errorf("invalid config: %s transport needs a url", c.Transport)
		}
		return c.Transport, nil
	case TransportStdio:
		if c.Command == "" {
			return "", errors.New("invalid config: stdio transport needs a command")
		}
		return c.Transport, nil
	case "":
	default:
		return "", fmt.Errorf("invalid config: unknown transport %q", c.Transport)
	}

	if c.URL != "" {
		return TransportHTTP, nil
	}
	if c.Command != "" {
		return TransportStdio, nil
	}
	return "", errors.New("invalid config: neither url nor command provided")
}

// LoadConfig reads mcp_config.json, writing an empty one when it is missing.
func LoadConfig(path string) (Config, error) {
	cfg := Config{MCPServers: make(map[string]ServerConfig)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, SaveConfig(path, cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read mcp config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse mcp config: %w", err)
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]ServerConfig)
	}
	return cfg, nil
}

func SaveConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mcp config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mcp config: %w", err)
	}
	return nil
}
