package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"syscall"
)

const listProcessesSchema = `
{
  "type": "object",
  "properties": {
    "name": { "type": "string", "description": "Only list processes whose name contains this string" },
    "limit": { "type": ["integer", "string"], "description": "Maximum number of processes (default 50)" }
  }
}
`

const killProcessSchema = `
{
  "type": "object",
  "properties": {
    "pid": { "type": ["integer", "string"], "description": "The process id" },
    "force": { "type": ["boolean", "string"], "description": "Send SIGKILL instead of SIGTERM" }
  },
  "required": ["pid"]
}
`

const defaultProcessLimit = 50

type processInfo struct {
	PID  int
	Name string
}

type Process struct {
	procRoot string
}

func NewProcess() *Process {
	return &Process{procRoot: "/proc"}
}

func (p *Process) ListProcesses(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Name  string  `json:"name"`
		Limit flexInt `json:"limit"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	limit := int(input.Limit)
	if limit <= 0 {
		limit = defaultProcessLimit
	}

	procs, err := p.snapshot(ctx)
	if err != nil {
		return "", err
	}

	filter := strings.ToLower(input.Name)
	var sb strings.Builder
	shown := 0
	for _, proc := range procs {
		if filter != "" && !strings.Contains(strings.ToLower(proc.Name), filter) {
			continue
		}
		if shown == limit {
			sb.WriteString("... (more processes omitted)\n")
			break
		}
		fmt.Fprintf(&sb, "%7d  %s\n", proc.PID, proc.Name)
		shown++
	}
	if shown == 0 {
		return "No matching processes.", nil
	}
	return "    PID  NAME\n" + sb.String(), nil
}

func (p *Process) snapshot(ctx context.Context) ([]processInfo, error) {
	if runtime.GOOS == "linux" {
		if procs, err := p.readProc(); err == nil {
			return procs, nil
		}
	}
	return p.runPS(ctx)
}

func (p *Process) readProc() ([]processInfo, error) {
	entries, err := os.ReadDir(p.procRoot)
	if err != nil {
		return nil, err
	}

	var procs []processInfo
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || !e.IsDir() {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(p.procRoot, e.Name(), "comm"))
		if err != nil {
			continue
		}
		procs = append(procs, processInfo{PID: pid, Name: strings.TrimSpace(string(comm))})
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })
	return procs, nil
}

func (p *Process) runPS(ctx context.Context) ([]processInfo, error) {
	if runtime.GOOS == "windows" {
		return nil, errors.New("listing processes is not supported on windows")
	}

	out, err := exec.CommandContext(ctx, "ps", "-eo", "pid=,comm=").Output()
	if err != nil {
		return nil, fmt.Errorf("ps failed: %w", err)
	}

	var procs []processInfo
	for _, line := range bytes.Split(out, []byte("\n")) {
		fields := strings.Fields(string(line))
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		procs = append(procs, processInfo{PID: pid, Name: strings.Join(fields[1:], " ")})
	}
	return procs, nil
}

func (p *Process) KillProcess(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		PID   flexInt `json:"pid"`
		Force any     `json:"force"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}

	pid := int(input.PID)
	if pid <= 1 {
		return "", fmt.Errorf("refusing to signal pid %d", pid)
	}
	if pid == os.Getpid() {
		return "", errors.New("refusing to signal the assistant itself")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return "", fmt.Errorf("find process: %w", err)
	}

	if truthy(input.Force) {
		if err := proc.Kill(); err != nil {
			return "", fmt.Errorf("kill %d: %w", pid, err)
		}
		return fmt.Sprintf("Killed process %d", pid), nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return "", fmt.Errorf("terminate %d: %w", pid, err)
	}
	return fmt.Sprintf("Sent SIGTERM to process %d", pid), nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	default:
		return false
	}
}

func (p *Process) GetDefinitions() map[string]Definition {
	return map[string]Definition{
		"list_processes": {"List running processes", listProcessesSchema, p.ListProcesses},
		"kill_process":   {"Terminate a process by pid", killProcessSchema, p.KillProcess},
	}
}
