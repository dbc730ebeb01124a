package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/cnapse/internal/core"
)

func (s *Store) CreateSession(ctx context.Context) (string, error) {
	var id string
	err := s.withTx(ctx, "create session", func(tx *sql.Tx) error {
		var err error
		id, err = s.insertSession(ctx, tx)
		return err
	})
	return id, err
}

// GetOrCreateCurrentSession returns the newest session created on the current
// UTC day, creating one when there is none.
func (s *Store) GetOrCreateCurrentSession(ctx context.Context) (string, error) {
	var id string
	err := s.withTx(ctx, "get current session", func(tx *sql.Tx) error {
		now := s.timestamp()
		dayStart := now.Truncate(24 * time.Hour)
		dayEnd := dayStart.Add(24 * time.Hour)

		err := tx.QueryRowContext(ctx,
			`SELECT id FROM sessions WHERE created_at >= ? AND created_at < ? ORDER BY created_at DESC LIMIT 1`,
			formatTime(dayStart), formatTime(dayEnd),
		).Scan(&id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to query current session: %w", err)
		}

		id, err = s.insertSession(ctx, tx)
		return err
	})
	return id, err
}

func (s *Store) insertSession(ctx context.Context, tx *sql.Tx) (string, error) {
	id := uuid.NewString()
	ts := formatTime(s.timestamp())
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, updated_at) VALUES (?, ?, ?)`,
		id, ts, ts,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}
	return id, nil
}

// touchSession moves updated_at forward; it never moves it back.
func touchSession(ctx context.Context, tx *sql.Tx, sessionID, ts string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = MAX(updated_at, ?) WHERE id = ?`,
		ts, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (core.Session, error) {
	row := s.db.QueryRowContext(ctx, sessionSelect+` WHERE s.id = ? GROUP BY s.id`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}
	if err != nil {
		return core.Session{}, persistence("get session", err)
	}
	return sess, nil
}

// ListSessions returns the most recently updated sessions first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]core.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		sessionSelect+` GROUP BY s.id ORDER BY s.updated_at DESC, s.created_at DESC LIMIT ?`,
		sqlLimit(limit),
	)
	if err != nil {
		return nil, persistence("list sessions", err)
	}
	defer rows.Close()

	var sessions []core.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, persistence("list sessions", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list sessions", err)
	}
	return sessions, nil
}

func (s *Store) UpdateSessionSummary(ctx context.Context, sessionID, summary string) error {
	return s.withTx(ctx, "update session summary", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET summary = ? WHERE id = ?`, summary, sessionID); err != nil {
			return fmt.Errorf("failed to update summary: %w", err)
		}
		return touchSession(ctx, tx, sessionID, formatTime(s.timestamp()))
	})
}

// ClearSession deletes the session's messages and then the session itself.
func (s *Store) ClearSession(ctx context.Context, sessionID string) error {
	return s.withTx(ctx, "clear session", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
}

const sessionSelect = `SELECT s.id, s.created_at, s.updated_at, s.summary, s.metadata, COUNT(m.seq)
FROM sessions s LEFT JOIN messages m ON m.session_id = s.id`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (core.Session, error) {
	var (
		sess                 core.Session
		createdAt, updatedAt string
		summary, metadata    sql.NullString
	)
	if err := row.Scan(&sess.ID, &createdAt, &updatedAt, &summary, &metadata, &sess.MessageCount); err != nil {
		return core.Session{}, err
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	sess.Summary = summary.String
	sess.Metadata = decodeMetadata(metadata)
	return sess, nil
}
