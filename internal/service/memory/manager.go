package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/pkg/log"
	"github.com/sandevgo/cnapse/pkg/tokens"
)

const (
	DefaultHotTurns            = 3
	DefaultWarmChunks          = 10
	DefaultSimilarityThreshold = 0.7

	retrievalHeader = "Relevant context from previous conversations:\n"
)

// Tunables of the context manager.
type Tunables struct {
	HotTurns            int
	WarmChunks          int
	SimilarityThreshold float64
	WarmRetrieval       bool
}

func DefaultTunables() Tunables {
	return Tunables{
		HotTurns:            DefaultHotTurns,
		WarmChunks:          DefaultWarmChunks,
		SimilarityThreshold: DefaultSimilarityThreshold,
		WarmRetrieval:       true,
	}
}

func TunablesFrom(cfg core.MemoryConfig) Tunables {
	return Tunables{
		HotTurns:            cfg.GetHotTurns(),
		WarmChunks:          cfg.GetWarmChunks(),
		SimilarityThreshold: cfg.GetSimilarityThreshold(),
		WarmRetrieval:       cfg.IsWarmRetrievalEnabled(),
	}
}

type Option func(*ContextManager)

// WithRetriever replaces the default substring retriever. A retriever that
// also implements Indexer is fed every persisted message.
func WithRetriever(r Retriever) Option {
	return func(m *ContextManager) {
		m.retriever = r
	}
}

func WithTokenCounter(c tokens.Counter) Option {
	return func(m *ContextManager) {
		m.counter = c
	}
}

// ContextManager owns the hot window of the current session and writes every
// message through to the store before it becomes visible in the window.
type ContextManager struct {
	store     core.MemoryStore
	retriever Retriever
	counter   tokens.Counter
	tunables  Tunables
	maxHot    int

	mu        sync.Mutex
	sessionID string
	hot       []core.Message
	summary   string
}

func NewContextManager(store core.MemoryStore, t Tunables, opts ...Option) *ContextManager {
	if t.HotTurns <= 0 {
		t.HotTurns = DefaultHotTurns
	}
	if t.WarmChunks <= 0 {
		t.WarmChunks = DefaultWarmChunks
	}
	if t.SimilarityThreshold < 0 || t.SimilarityThreshold > 1 {
		t.SimilarityThreshold = DefaultSimilarityThreshold
	}

	m := &ContextManager{
		store:    store,
		counter:  tokens.Words{},
		tunables: t,
		maxHot:   t.HotTurns * 2,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.retriever == nil {
		m.retriever = NewSubstringRetriever(store)
	}
	return m
}

func (m *ContextManager) Tunables() Tunables {
	return m.tunables
}

// MaxHot is the hot window capacity in messages.
func (m *ContextManager) MaxHot() int {
	return m.maxHot
}

func (m *ContextManager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// HotLen reports the number of messages currently in the hot window.
func (m *ContextManager) HotLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hot)
}

// Resume binds to today's session and preloads its latest messages into the
// hot window in chronological order.
func (m *ContextManager) Resume(ctx context.Context) error {
	sessionID, err := m.store.GetOrCreateCurrentSession(ctx)
	if err != nil {
		return fmt.Errorf("resume session: %w", err)
	}

	recent, err := m.store.GetMessages(ctx, sessionID, m.maxHot)
	if err != nil {
		return fmt.Errorf("preload session %s: %w", sessionID, err)
	}

	hot := make([]core.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		hot = append(hot, recent[i])
	}

	summary := m.loadSummary(ctx, sessionID)

	m.mu.Lock()
	m.sessionID = sessionID
	m.hot = hot
	m.summary = summary
	m.mu.Unlock()

	m.index(ctx, hot...)

	log.FromCtx(ctx).Debug().
		Str("session", sessionID).
		Int("preloaded", len(hot)).
		Msg("session resumed")
	return nil
}

// NewSession starts a fresh session and empties the hot window. Nothing is
// deleted from storage.
func (m *ContextManager) NewSession(ctx context.Context) error {
	sessionID, err := m.store.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("new session: %w", err)
	}

	m.mu.Lock()
	m.sessionID = sessionID
	m.hot = nil
	m.summary = ""
	m.mu.Unlock()

	log.FromCtx(ctx).Debug().Str("session", sessionID).Msg("session started")
	return nil
}

// Clear deletes the current session from storage and starts a new one.
func (m *ContextManager) Clear(ctx context.Context) error {
	sessionID, err := m.currentSession(ctx)
	if err != nil {
		return err
	}

	if err := m.store.ClearSession(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	if ix, ok := m.retriever.(Indexer); ok {
		if err := ix.RemoveSession(ctx, sessionID); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("session", sessionID).Msg("failed to drop session from index")
		}
	}

	return m.NewSession(ctx)
}

// AddMessage persists msg in the current session and then appends it to the
// hot window. On a storage failure the window is left untouched.
func (m *ContextManager) AddMessage(ctx context.Context, msg core.Message) (core.Message, error) {
	sessionID, err := m.currentSession(ctx)
	if err != nil {
		return core.Message{}, err
	}

	saved, err := m.store.AddMessage(ctx, m.prepare(msg, sessionID, msg.Handler))
	if err != nil {
		return core.Message{}, err
	}

	m.push(saved)
	m.index(ctx, saved)
	return saved, nil
}

// CommitTurn persists a user message and its reply in one transaction, then
// appends both to the hot window and adds the request to the session summary.
func (m *ContextManager) CommitTurn(ctx context.Context, user, assistant core.Message, handler string) (core.Message, core.Message, error) {
	sessionID, err := m.currentSession(ctx)
	if err != nil {
		return core.Message{}, core.Message{}, err
	}

	u, a, err := m.store.AddTurn(ctx,
		m.prepare(user, sessionID, handler),
		m.prepare(assistant, sessionID, handler),
	)
	if err != nil {
		return core.Message{}, core.Message{}, err
	}

	m.push(u, a)
	m.index(ctx, u, a)
	m.updateSummary(ctx, sessionID, u.Content)
	return u, a, nil
}

// GetContext returns a copy of the hot window.
func (m *ContextManager) GetContext() []core.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// GetContextWithRetrieval returns the hot window, preceded by a single system
// message listing retrieved history that is not already in the window.
// Retrieval failures degrade to the plain window.
func (m *ContextManager) GetContextWithRetrieval(ctx context.Context, query string) []core.Message {
	m.mu.Lock()
	hot := m.snapshot()
	m.mu.Unlock()

	if !m.tunables.WarmRetrieval || strings.TrimSpace(query) == "" {
		return hot
	}

	hits, err := m.retriever.Search(ctx, query, m.tunables.WarmChunks)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("warm retrieval failed")
		return hot
	}

	inHot := make(map[string]struct{}, len(hot))
	for _, msg := range hot {
		if msg.ID != "" {
			inHot[msg.ID] = struct{}{}
		}
	}

	var lines []string
	for _, h := range hits {
		if h.Normalized && h.Score < m.tunables.SimilarityThreshold {
			continue
		}
		if _, ok := inHot[h.Message.ID]; ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s]: %s", h.Message.Role, h.Message.Content))
	}
	if len(lines) == 0 {
		return hot
	}

	log.FromCtx(ctx).Debug().Int("hits", len(lines)).Msg("warm context retrieved")

	out := make([]core.Message, 0, len(hot)+1)
	out = append(out, core.Message{
		Role:    core.RoleSystem,
		Content: retrievalHeader + strings.Join(lines, "\n"),
	})
	return append(out, hot...)
}

func (m *ContextManager) currentSession(ctx context.Context) (string, error) {
	m.mu.Lock()
	sessionID := m.sessionID
	m.mu.Unlock()
	if sessionID != "" {
		return sessionID, nil
	}

	sessionID, err := m.store.GetOrCreateCurrentSession(ctx)
	if err != nil {
		return "", fmt.Errorf("bind session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionID == "" {
		m.sessionID = sessionID
	}
	return m.sessionID, nil
}

func (m *ContextManager) prepare(msg core.Message, sessionID, handler string) core.Message {
	msg.SessionID = sessionID
	if handler != "" {
		msg.Handler = handler
	}
	if msg.TokenCount == nil && m.counter != nil {
		n := m.counter.Count(msg.Content)
		msg.TokenCount = &n
	}
	return msg
}

func (m *ContextManager) push(msgs ...core.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hot = append(m.hot, msgs...)
	if over := len(m.hot) - m.maxHot; over > 0 {
		m.hot = append([]core.Message(nil), m.hot[over:]...)
	}
}

func (m *ContextManager) snapshot() []core.Message {
	out := make([]core.Message, len(m.hot))
	copy(out, m.hot)
	return out
}

func (m *ContextManager) index(ctx context.Context, msgs ...core.Message) {
	ix, ok := m.retriever.(Indexer)
	if !ok || len(msgs) == 0 {
		return
	}
	if err := ix.Index(ctx, msgs...); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to index messages")
	}
}
