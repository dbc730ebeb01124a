package router

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedHandler struct {
	name  string
	score float64
}

func (f fixedHandler) Name() string         { return f.name }
func (f fixedHandler) Description() string  { return f.name }
func (f fixedHandler) Score(string) float64 { return f.score }
func (f fixedHandler) Tools() []string      { return nil }
func (f fixedHandler) SystemPrompt() string { return "" }

func TestRouter_BuiltinSelection(t *testing.T) {
	r := NewDefault(nil)
	ctx := context.Background()

	tests := []struct {
		request string
		forced  string
		want    string
	}{
		{request: "list files in /tmp", want: Filer},
		{request: "write a function that reverses a string", want: Coder},
		{request: "what is listening on PORT 8080?", want: Shell},
		{request: "what did we talk about yesterday", want: Memory},
		{request: "make me a dashboard", want: App},
		{request: "hello there", want: Shell},
		{request: "", want: Shell},
		{request: "write to a file", want: Coder},
		{request: "list files in /tmp", forced: Memory, want: Memory},
		{request: "list files in /tmp", forced: "nonexistent", want: Filer},
	}

	var got []string
	var want []string
	for _, tt := range tests {
		got = append(got, r.Select(ctx, tt.request, tt.forced).Name())
		want = append(want, tt.want)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}
}

func TestRouter_Deterministic(t *testing.T) {
	r := NewDefault(nil)
	ctx := context.Background()

	for _, request := range []string{"run the debug build", "search my folder", "anything"} {
		first := r.Select(ctx, request, "").Name()
		for i := 0; i < 50; i++ {
			require.Equal(t, first, r.Select(ctx, request, "").Name(), request)
		}
	}
}

func TestRouter_TieGoesToFirstRegistered(t *testing.T) {
	r, err := New("c",
		fixedHandler{name: "a", score: 0.5},
		fixedHandler{name: "b", score: 0.5},
		fixedHandler{name: "c", score: 0.1},
	)
	require.NoError(t, err)

	sel := r.Select(context.Background(), "anything", "")
	assert.Equal(t, "a", sel.Name())
	assert.Equal(t, 0.5, sel.Score)
	assert.False(t, sel.Fallback)
}

func TestRouter_FallbackWhenNothingScores(t *testing.T) {
	r, err := New("b",
		fixedHandler{name: "a", score: 0},
		fixedHandler{name: "b", score: -3},
	)
	require.NoError(t, err)

	sel := r.Select(context.Background(), "anything", "")
	assert.Equal(t, "b", sel.Name())
	assert.True(t, sel.Fallback)
}

func TestRouter_ForcedBypassesScoring(t *testing.T) {
	r, err := New("a",
		fixedHandler{name: "a", score: 1},
		fixedHandler{name: "b", score: 0},
	)
	require.NoError(t, err)

	sel := r.Select(context.Background(), "anything", "b")
	assert.Equal(t, "b", sel.Name())
	assert.True(t, sel.Forced)
}

func TestRouter_ScoresAreClamped(t *testing.T) {
	r, err := New("a",
		fixedHandler{name: "a", score: 0.95},
		fixedHandler{name: "b", score: 7},
	)
	require.NoError(t, err)

	sel := r.Select(context.Background(), "anything", "")
	assert.Equal(t, "b", sel.Name())
	assert.Equal(t, 1.0, sel.Score)
}

func TestNew_Validation(t *testing.T) {
	_, err := New("a", fixedHandler{name: "a"}, fixedHandler{name: "a"})
	assert.ErrorContains(t, err, "registered twice")

	_, err = New("missing", fixedHandler{name: "a"})
	assert.ErrorContains(t, err, "not registered")
}

func TestBuiltin_Overrides(t *testing.T) {
	r := NewDefault(map[string]Override{
		Memory:  {Keywords: []string{"notebook"}, Prompt: "custom memory prompt"},
		"ghost": {Keywords: []string{"boo"}},
	})
	ctx := context.Background()

	sel := r.Select(ctx, "open my notebook", "")
	assert.Equal(t, Memory, sel.Name())
	assert.Equal(t, "custom memory prompt", sel.Handler.SystemPrompt())

	// default keyword no longer applies
	assert.Equal(t, Shell, r.Select(ctx, "tell me about yesterday", "").Name())

	h, ok := r.Get(Filer)
	require.True(t, ok)
	assert.Contains(t, h.Tools(), "list_dir")
}

func TestKeywordScorer(t *testing.T) {
	s := KeywordScorer{Keywords: []string{"Deploy", ""}, Hit: 0.8}
	assert.Equal(t, 0.8, s.Score("please DEPLOY it"))
	assert.Equal(t, 0.0, s.Score("nothing"))
}
