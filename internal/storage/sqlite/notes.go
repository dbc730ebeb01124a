package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sandevgo/cnapse/internal/core"
)

func (s *Store) SaveNote(ctx context.Context, content string, tags []string) (string, error) {
	id := uuid.NewString()
	err := s.withTx(ctx, "save note", func(tx *sql.Tx) error {
		data, err := json.Marshal(normalizeTags(tags))
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO notes (id, content, tags, created_at) VALUES (?, ?, ?, ?)`,
			id, content, string(data), formatTime(s.timestamp()),
		)
		if err != nil {
			return fmt.Errorf("failed to insert note: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetNotes returns notes newest first. With tags set, a note matches when it
// carries any of them.
func (s *Store) GetNotes(ctx context.Context, tags []string, limit int) ([]core.Note, error) {
	query := `SELECT id, content, tags, created_at FROM notes`
	var args []any

	if tags = normalizeTags(tags); len(tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")
		query += ` WHERE EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value IN (` + placeholders + `))`
		for _, tag := range tags {
			args = append(args, tag)
		}
	}

	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, sqlLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence("get notes", err)
	}
	defer rows.Close()

	var notes []core.Note
	for rows.Next() {
		var (
			note      core.Note
			tagsJSON  string
			createdAt string
		)
		if err := rows.Scan(&note.ID, &note.Content, &tagsJSON, &createdAt); err != nil {
			return nil, persistence("get notes", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &note.Tags); err != nil {
			return nil, persistence("get notes", fmt.Errorf("failed to decode tags: %w", err))
		}
		note.CreatedAt = parseTime(createdAt)
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("get notes", err)
	}
	return notes, nil
}

// normalizeTags trims, drops empties and removes duplicates, keeping order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
