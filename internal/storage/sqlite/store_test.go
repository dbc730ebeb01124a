package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sandevgo/cnapse/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a settable clock that advances one millisecond per reading.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestStore(t *testing.T) (*Store, *testClock) {
	t.Helper()

	db, err := NewDB(context.Background(), filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := &testClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	return NewStore(db, WithClock(clock.Now)), clock
}

func TestStore_MessageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	sessionID, err := store.CreateSession(ctx)
	require.NoError(t, err)

	tokens := 7
	content := "  keep   whitespace\nand 'quotes' %_ intact  "
	saved, err := store.AddMessage(ctx, core.Message{
		SessionID:  sessionID,
		Role:       core.RoleUser,
		Content:    content,
		Handler:    "filer",
		TokenCount: &tokens,
		Metadata:   map[string]any{"source": "test"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	messages, err := store.GetMessages(ctx, sessionID, 1)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	got := messages[0]
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, content, got.Content)
	assert.Equal(t, core.RoleUser, got.Role)
	assert.Equal(t, sessionID, got.SessionID)
	assert.Equal(t, "filer", got.Handler)
	require.NotNil(t, got.TokenCount)
	assert.Equal(t, 7, *got.TokenCount)
	assert.Equal(t, "test", got.Metadata["source"])
	assert.True(t, saved.CreatedAt.Equal(got.CreatedAt))
}

func TestStore_GetMessagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	sessionID, err := store.CreateSession(ctx)
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three"} {
		_, err := store.AddMessage(ctx, core.Message{SessionID: sessionID, Role: core.RoleUser, Content: content})
		require.NoError(t, err)
	}

	messages, err := store.GetMessages(ctx, sessionID, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "three", messages[0].Content)
	assert.Equal(t, "two", messages[1].Content)

	all, err := store.GetMessages(ctx, sessionID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_InsertionOrderBreaksTimestampTies(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(ctx, filepath.Join(t.TempDir(), "ties.db"))
	require.NoError(t, err)
	defer db.Close()

	frozen := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	store := NewStore(db, WithClock(func() time.Time { return frozen }))

	sessionID, err := store.CreateSession(ctx)
	require.NoError(t, err)
	for _, content := range []string{"a", "b", "c"} {
		_, err := store.AddMessage(ctx, core.Message{SessionID: sessionID, Role: core.RoleUser, Content: content})
		require.NoError(t, err)
	}

	messages, err := store.GetMessages(ctx, sessionID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{messages[0].Content, messages[1].Content, messages[2].Content})
}

func TestStore_AddMessageTouchesSession(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	sessionID, err := store.CreateSession(ctx)
	require.NoError(t, err)
	before, err := store.GetSession(ctx, sessionID)
	require.NoError(t, err)

	saved, err := store.AddMessage(ctx, core.Message{SessionID: sessionID, Role: core.RoleUser, Content: "hi"})
	require.NoError(t, err)

	after, err := store.GetSession(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	assert.True(t, after.UpdatedAt.Equal(saved.CreatedAt))
	assert.Equal(t, 1, after.MessageCount)
}

func TestStore_AddMessageUnknownSession(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.AddMessage(context.Background(), core.Message{SessionID: "missing", Role: core.RoleUser, Content: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistenceFailure)
}

func TestStore_AddTurnIsAtomic(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	sessionID, err := store.CreateSession(ctx)
	require.NoError(t, err)

	user, assistant, err := store.AddTurn(ctx,
		core.Message{SessionID: sessionID, Role: core.RoleUser, Content: "question"},
		core.Message{SessionID: sessionID, Role: core.RoleAssistant, Content: "answer"},
	)
	require.NoError(t, err)
	assert.True(t, assistant.CreatedAt.After(user.CreatedAt))

	// An invalid role on the second row aborts the whole transaction.
	_, _, err = store.AddTurn(ctx,
		core.Message{SessionID: sessionID, Role: core.RoleUser, Content: "orphan?"},
		core.Message{SessionID: sessionID, Role: "narrator", Content: "never stored"},
	)
	require.ErrorIs(t, err, core.ErrPersistenceFailure)

	messages, err := store.GetMessages(ctx, sessionID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "answer", messages[0].Content)
	assert.Equal(t, "question", messages[1].Content)
}

func TestStore_DailySessionReuse(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	first, err := store.GetOrCreateCurrentSession(ctx)
	require.NoError(t, err)

	clock.Set(time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC))
	second, err := store.GetOrCreateCurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	clock.Set(time.Date(2024, 3, 11, 0, 1, 0, 0, time.UTC))
	third, err := store.GetOrCreateCurrentSession(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)

	again, err := store.GetOrCreateCurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, third, again)
}

func TestStore_DailySessionPicksNewest(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.CreateSession(ctx)
	require.NoError(t, err)
	newest, err := store.CreateSession(ctx)
	require.NoError(t, err)

	current, err := store.GetOrCreateCurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, newest, current)
}

func TestStore_SearchMessages(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	s1, err := store.CreateSession(ctx)
	require.NoError(t, err)
	s2, err := store.CreateSession(ctx)
	require.NoError(t, err)

	for _, m := range []core.Message{
		{SessionID: s1, Role: core.RoleUser, Content: "deploy the Billing service"},
		{SessionID: s2, Role: core.RoleAssistant, Content: "billing runs on port 8080"},
		{SessionID: s2, Role: core.RoleUser, Content: "100% done"},
		{SessionID: s1, Role: core.RoleUser, Content: "unrelated"},
	} {
		_, err := store.AddMessage(ctx, m)
		require.NoError(t, err)
	}

	hits, err := store.SearchMessages(ctx, "billing", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "billing runs on port 8080", hits[0].Content)
	assert.Equal(t, "deploy the Billing service", hits[1].Content)

	hits, err = store.SearchMessages(ctx, "0%", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "100% done", hits[0].Content)

	hits, err = store.SearchMessages(ctx, "billing", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = store.SearchMessages(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_NotesTagUnion(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	first, err := store.SaveNote(ctx, "first", []string{"a"})
	require.NoError(t, err)
	_, err = store.SaveNote(ctx, "second", []string{"b"})
	require.NoError(t, err)
	third, err := store.SaveNote(ctx, "third", []string{"a", "c"})
	require.NoError(t, err)

	notes, err := store.GetNotes(ctx, []string{"a"}, 10)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, third, notes[0].ID)
	assert.Equal(t, first, notes[1].ID)
	assert.Equal(t, []string{"a", "c"}, notes[0].Tags)

	notes, err = store.GetNotes(ctx, []string{"b", "c"}, 10)
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	notes, err = store.GetNotes(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, notes, 3)

	notes, err = store.GetNotes(ctx, []string{"missing"}, 10)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestStore_NoteTagsNormalized(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.SaveNote(ctx, "content", []string{" work ", "", "work", "home"})
	require.NoError(t, err)

	notes, err := store.GetNotes(ctx, nil, 1)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, []string{"work", "home"}, notes[0].Tags)
}

func TestStore_ClearSession(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	keep, err := store.CreateSession(ctx)
	require.NoError(t, err)
	drop, err := store.CreateSession(ctx)
	require.NoError(t, err)

	for _, id := range []string{keep, drop} {
		_, err := store.AddMessage(ctx, core.Message{SessionID: id, Role: core.RoleUser, Content: "hello " + id})
		require.NoError(t, err)
	}

	require.NoError(t, store.ClearSession(ctx, drop))

	messages, err := store.GetMessages(ctx, drop, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)

	_, err = store.GetSession(ctx, drop)
	assert.ErrorIs(t, err, core.ErrNotFound)

	messages, err = store.GetMessages(ctx, keep, 0)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestStore_ListSessionsAndSummary(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	older, err := store.CreateSession(ctx)
	require.NoError(t, err)
	newer, err := store.CreateSession(ctx)
	require.NoError(t, err)

	_, err = store.AddMessage(ctx, core.Message{SessionID: older, Role: core.RoleUser, Content: "bump"})
	require.NoError(t, err)
	require.NoError(t, store.UpdateSessionSummary(ctx, older, "talked about bumps"))

	sessions, err := store.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, older, sessions[0].ID)
	assert.Equal(t, "talked about bumps", sessions[0].Summary)
	assert.Equal(t, 1, sessions[0].MessageCount)
	assert.Equal(t, newer, sessions[1].ID)
	assert.Equal(t, 0, sessions[1].MessageCount)

	err = store.UpdateSessionSummary(ctx, "missing", "x")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_ClosedDatabaseIsPersistenceFailure(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.CreateSession(context.Background())
	assert.ErrorIs(t, err, core.ErrPersistenceFailure)

	_, err = store.GetMessages(context.Background(), "any", 1)
	assert.ErrorIs(t, err, core.ErrPersistenceFailure)
}

func TestStore_InMemoryDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(ctx, InMemory)
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	id, err := store.GetOrCreateCurrentSession(ctx)
	require.NoError(t, err)
	_, err = store.AddMessage(ctx, core.Message{SessionID: id, Role: core.RoleUser, Content: "ephemeral"})
	require.NoError(t, err)

	messages, err := store.GetMessages(ctx, id, 5)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}
