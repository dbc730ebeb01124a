package core

import (
	"context"
	"time"
)

type Session struct {
	ID           string         `json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Summary      string         `json:"summary,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	MessageCount int            `json:"message_count"`
}

type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryStore is the durable record of sessions and messages.
type MemoryStore interface {
	CreateSession(ctx context.Context) (string, error)
	GetOrCreateCurrentSession(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, msg Message) (Message, error)
	AddTurn(ctx context.Context, user, assistant Message) (Message, Message, error)
	GetMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)
	SearchMessages(ctx context.Context, query string, limit int) ([]Message, error)
	ClearSession(ctx context.Context, sessionID string) error
}

type SessionRepository interface {
	GetSession(ctx context.Context, sessionID string) (Session, error)
	ListSessions(ctx context.Context, limit int) ([]Session, error)
	UpdateSessionSummary(ctx context.Context, sessionID, summary string) error
}

type NoteRepository interface {
	SaveNote(ctx context.Context, content string, tags []string) (string, error)
	GetNotes(ctx context.Context, tags []string, limit int) ([]Note, error)
}
