package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sandevgo/cnapse/internal/core"
)

// AddMessage persists msg and touches its session in one transaction.
// The stored copy, with ID and CreatedAt set, is returned.
func (s *Store) AddMessage(ctx context.Context, msg core.Message) (core.Message, error) {
	err := s.withTx(ctx, "add message", func(tx *sql.Tx) error {
		var err error
		msg, err = insertMessage(ctx, tx, msg, s.timestamp())
		if err != nil {
			return err
		}
		return touchSession(ctx, tx, msg.SessionID, formatTime(msg.CreatedAt))
	})
	if err != nil {
		return core.Message{}, err
	}
	return msg, nil
}

// AddTurn persists a user message and its assistant reply together: either
// both rows exist afterwards or neither does.
func (s *Store) AddTurn(ctx context.Context, user, assistant core.Message) (core.Message, core.Message, error) {
	if user.SessionID != assistant.SessionID {
		return core.Message{}, core.Message{}, core.E(core.PersistenceFailure, "add turn",
			fmt.Errorf("session mismatch: %q != %q", user.SessionID, assistant.SessionID))
	}

	err := s.withTx(ctx, "add turn", func(tx *sql.Tx) error {
		at := s.timestamp()

		var err error
		if user, err = insertMessage(ctx, tx, user, at); err != nil {
			return err
		}
		if assistant, err = insertMessage(ctx, tx, assistant, at.Add(time.Microsecond)); err != nil {
			return err
		}
		return touchSession(ctx, tx, user.SessionID, formatTime(assistant.CreatedAt))
	})
	if err != nil {
		return core.Message{}, core.Message{}, err
	}
	return user, assistant, nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, msg core.Message, at time.Time) (core.Message, error) {
	if msg.SessionID == "" {
		return msg, errors.New("message has no session")
	}

	metadata, err := encodeMetadata(msg.Metadata)
	if err != nil {
		return msg, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var tokenCount sql.NullInt64
	if msg.TokenCount != nil {
		tokenCount = sql.NullInt64{Int64: int64(*msg.TokenCount), Valid: true}
	}

	msg.ID = ulid.Make().String()
	msg.CreatedAt = at

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, handler, token_count, created_at, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content,
		sql.NullString{String: msg.Handler, Valid: msg.Handler != ""},
		tokenCount, formatTime(at), metadata,
	)
	if err != nil {
		return msg, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// GetMessages returns up to limit messages of a session, newest first.
// A non-positive limit returns all of them.
func (s *Store) GetMessages(ctx context.Context, sessionID string, limit int) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		messageSelect+` WHERE session_id = ? ORDER BY created_at DESC, seq DESC LIMIT ?`,
		sessionID, sqlLimit(limit),
	)
	if err != nil {
		return nil, persistence("get messages", err)
	}
	return collectMessages(rows, "get messages")
}

// SearchMessages matches query as a literal substring of message content
// across all sessions, newest first.
func (s *Store) SearchMessages(ctx context.Context, query string, limit int) ([]core.Message, error) {
	if query == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		messageSelect+` WHERE content LIKE ? ESCAPE '\' ORDER BY created_at DESC, seq DESC LIMIT ?`,
		likePattern(query), sqlLimit(limit),
	)
	if err != nil {
		return nil, persistence("search messages", err)
	}
	return collectMessages(rows, "search messages")
}

const messageSelect = `SELECT id, session_id, role, content, handler, token_count, created_at, metadata FROM messages`

func collectMessages(rows *sql.Rows, op string) ([]core.Message, error) {
	defer rows.Close()

	var messages []core.Message
	for rows.Next() {
		var (
			msg               core.Message
			handler, metadata sql.NullString
			tokenCount        sql.NullInt64
			createdAt         string
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &handler, &tokenCount, &createdAt, &metadata); err != nil {
			return nil, persistence(op, fmt.Errorf("failed to scan message: %w", err))
		}

		msg.Handler = handler.String
		if tokenCount.Valid {
			n := int(tokenCount.Int64)
			msg.TokenCount = &n
		}
		msg.CreatedAt = parseTime(createdAt)
		msg.Metadata = decodeMetadata(metadata)

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence(op, err)
	}
	return messages, nil
}
