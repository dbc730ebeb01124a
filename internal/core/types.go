package core

import (
	"encoding/json"
	"time"
)

const (
	AppName          = "cnapse"
	AppUserAgent     = "cnapse-agent/0.1"
	AppRepositoryURL = "https://github.com/sandevgo/cnapse"
	AppVersion       = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one utterance of a conversation. Persisted messages carry an ID,
// SessionID and CreatedAt; messages built for inference only need Role and Content.
type Message struct {
	ID         string         `json:"id,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Handler    string         `json:"handler,omitempty"`
	TokenCount *int           `json:"token_count,omitempty"`
	CreatedAt  time.Time      `json:"created_at,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ToolSpec describes a tool the model may request.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ToolCall is a parsed tool directive. It never outlives the turn that produced it.
type ToolCall struct {
	Name string         `json:"tool"`
	Args map[string]any `json:"args"`
}

type ToolResult struct {
	Name    string    `json:"name"`
	Success bool      `json:"success"`
	Output  string    `json:"output,omitempty"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"-"`
	Skipped bool      `json:"skipped,omitempty"`
}
