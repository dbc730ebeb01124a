package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const runCommandSchema = `
{
  "type": "object",
  "properties": {
    "command": { "type": "string", "description": "The shell command to execute" }
  },
  "required": ["command"]
}
`

const getEnvSchema = `
{
  "type": "object",
  "properties": {
    "name": { "type": "string", "description": "The environment variable name" }
  },
  "required": ["name"]
}
`

const setEnvSchema = `
{
  "type": "object",
  "properties": {
    "name": { "type": "string", "description": "The environment variable name" },
    "value": { "type": "string", "description": "The new value" }
  },
  "required": ["name", "value"]
}
`

const (
	maxOutputLines     = 200
	defaultExecTimeout = 5 * time.Minute
)

var secretMarkers = []string{"KEY", "TOKEN", "SECRET", "PASSWORD", "PASSWD"}

type Shell struct {
	WorkDir string
	Timeout time.Duration
}

func NewShell(workDir string) *Shell {
	return &Shell{WorkDir: workDir, Timeout: defaultExecTimeout}
}

func (s *Shell) RunCommand(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Command string `json:"command"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.Command) == "" {
		return "", errors.New("command must not be empty")
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", input.Command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", input.Command)
	}
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := truncateLines(stdout.String())
	errOutput := truncateLines(stderr.String())

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("command timed out after %v\nSTDOUT:\n%s\nSTDERR:\n%s", timeout, output, errOutput)
		}
		return "", fmt.Errorf("command failed: %v\nSTDOUT:\n%s\nSTDERR:\n%s", err, output, errOutput)
	}

	return fmt.Sprintf("STDOUT:\n%s\nSTDERR:\n%s", output, errOutput), nil
}

// GetEnv reads one variable. Values of names that look like credentials are
// never returned.
func (s *Shell) GetEnv(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Name string `json:"name"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}

	value, ok := os.LookupEnv(input.Name)
	if !ok {
		return fmt.Sprintf("%s is not set", input.Name), nil
	}

	upper := strings.ToUpper(input.Name)
	for _, marker := range secretMarkers {
		if strings.Contains(upper, marker) {
			return fmt.Sprintf("%s is set (value hidden)", input.Name), nil
		}
	}
	return fmt.Sprintf("%s=%s", input.Name, value), nil
}

// SetEnv sets a variable for this process and the commands it runs later.
func (s *Shell) SetEnv(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" || strings.ContainsAny(name, "= \x00") {
		return "", fmt.Errorf("invalid variable name %q", input.Name)
	}

	if err := os.Setenv(name, input.Value); err != nil {
		return "", fmt.Errorf("failed to set %s: %w", name, err)
	}
	return fmt.Sprintf("Set %s", name), nil
}

func truncateLines(output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return "(empty)"
	}

	lines := strings.Split(output, "\n")
	if len(lines) <= maxOutputLines {
		return output
	}

	truncated := lines[len(lines)-maxOutputLines:]
	return fmt.Sprintf("... (output truncated, showing last %d lines)\n%s", maxOutputLines, strings.Join(truncated, "\n"))
}

func (s *Shell) GetDefinitions() map[string]Definition {
	return map[string]Definition{
		"run_command": {"Execute a shell command and return its output", runCommandSchema, s.RunCommand},
		"get_env":     {"Read an environment variable", getEnvSchema, s.GetEnv},
		"set_env":     {"Set an environment variable for later commands", setEnvSchema, s.SetEnv},
	}
}
