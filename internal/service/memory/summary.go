package memory

import (
	"context"
	"strings"

	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/pkg/log"
)

const (
	summaryTopics   = 5
	summaryTopicLen = 60
	summarySep      = " | "
)

// summaryStore is implemented by stores that keep a summary per session.
type summaryStore interface {
	GetSession(ctx context.Context, sessionID string) (core.Session, error)
	UpdateSessionSummary(ctx context.Context, sessionID, summary string) error
}

// Summary is the rolling summary of the current session: the latest user
// requests, oldest first.
func (m *ContextManager) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

func (m *ContextManager) loadSummary(ctx context.Context, sessionID string) string {
	ss, ok := m.store.(summaryStore)
	if !ok {
		return ""
	}
	sess, err := ss.GetSession(ctx, sessionID)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("session", sessionID).Msg("failed to load session summary")
		return ""
	}
	return sess.Summary
}

// updateSummary folds request into the session summary. A failed write keeps
// the previous summary; the turn itself is already committed.
func (m *ContextManager) updateSummary(ctx context.Context, sessionID, request string) {
	ss, ok := m.store.(summaryStore)
	if !ok {
		return
	}

	m.mu.Lock()
	if m.sessionID != sessionID {
		m.mu.Unlock()
		return
	}
	next := appendTopic(m.summary, request)
	m.mu.Unlock()

	if err := ss.UpdateSessionSummary(ctx, sessionID, next); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("session", sessionID).Msg("failed to update session summary")
		return
	}

	m.mu.Lock()
	if m.sessionID == sessionID {
		m.summary = next
	}
	m.mu.Unlock()
}

func appendTopic(summary, request string) string {
	t := topic(request)
	if t == "" {
		return summary
	}

	var topics []string
	if summary != "" {
		topics = strings.Split(summary, summarySep)
	}
	topics = append(topics, t)
	if over := len(topics) - summaryTopics; over > 0 {
		topics = topics[over:]
	}
	return strings.Join(topics, summarySep)
}

// topic is the first line of request with whitespace collapsed, cut to
// summaryTopicLen runes.
func topic(request string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(request), "\n")
	line = strings.Join(strings.Fields(line), " ")
	line = strings.ReplaceAll(line, "|", "/")

	runes := []rune(line)
	if len(runes) > summaryTopicLen {
		return strings.TrimSpace(string(runes[:summaryTopicLen-1])) + "…"
	}
	return line
}
