package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/sandevgo/cnapse/internal/config"
	"github.com/sandevgo/cnapse/internal/providers/mcp"
)

var ErrEnvExists = errors.New(".env file already exists")

// SaveEnv writes vars to <runtimePath>/.env and makes sure an MCP config
// exists next to it. It returns the path of the .env file.
func SaveEnv(runtimePath string, vars map[string]string, overwrite bool) (string, error) {
	if err := config.EnsureRuntime(runtimePath); err != nil {
		return "", err
	}

	envPath := filepath.Join(runtimePath, ".env")
	if !overwrite {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, fmt.Errorf("%w at %s", ErrEnvExists, envPath)
		}
	}

	if err := godotenv.Write(vars, envPath); err != nil {
		return envPath, fmt.Errorf("failed to write .env: %w", err)
	}
	// the file holds API keys
	if err := os.Chmod(envPath, 0o600); err != nil {
		return envPath, fmt.Errorf("failed to restrict .env: %w", err)
	}

	if _, err := mcp.LoadConfig(filepath.Join(runtimePath, "mcp_config.json")); err != nil {
		return envPath, err
	}
	return envPath, nil
}

// SaveEnvStep finalizes the answers and writes them to disk.
type SaveEnvStep struct {
	runtimePath string
	overwrite   bool
	saved       bool
	err         error
}

func NewSaveEnvStep(runtimePath string, overwrite bool) *SaveEnvStep {
	return &SaveEnvStep{runtimePath: runtimePath, overwrite: overwrite}
}

func (s *SaveEnvStep) Init(state *InstallState) tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *SaveEnvStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.saved {
		return nil, nil
	}
	if s.err != nil {
		return s, nil
	}

	state.Finalize()
	if _, err := SaveEnv(s.runtimePath, state.EnvVars, s.overwrite); err != nil {
		s.err = err
		return s, func() tea.Msg { return errMsg(err) }
	}

	s.saved = true
	return nil, nil
}

func (s *SaveEnvStep) View(state *InstallState) string {
	if s.saved {
		return "Configuration saved successfully!\n"
	}
	return "Saving configuration...\n"
}
