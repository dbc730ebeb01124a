package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/internal/service/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

type fakeTurns struct {
	inputs []string
	res    agent.TurnResult
	err    error
}

func (f *fakeTurns) Run(_ context.Context, input string, _ agent.Options) (agent.TurnResult, error) {
	f.inputs = append(f.inputs, input)
	return f.res, f.err
}

type fakeCommands struct{ seen []string }

func (f *fakeCommands) Execute(_ context.Context, input string) (string, bool) {
	if !strings.HasPrefix(input, "/") {
		return "", false
	}
	f.seen = append(f.seen, input)
	return "⚙️ **Commands**\n", true
}

func (f *fakeCommands) ListCommands() []core.Command { return nil }

func TestRespond(t *testing.T) {
	ctx := context.Background()
	turns := &fakeTurns{res: agent.TurnResult{Handler: "memory", Reply: "You said *hi* yesterday."}}
	cmds := &fakeCommands{}
	b := &Bot{turns: turns, commands: cmds}

	assert.Equal(t, "⚙️ **Commands**\n", b.respond(ctx, "/start"))
	assert.Equal(t, []string{"/help"}, cmds.seen)

	out := b.respond(ctx, " what did I say yesterday? ")
	assert.Equal(t, []string{"what did I say yesterday?"}, turns.inputs)
	assert.Contains(t, out, "**Handler**: `memory`")
	assert.Contains(t, out, "You said *hi* yesterday.")
}

func TestRespond_Failure(t *testing.T) {
	ctx := context.Background()

	b := &Bot{turns: &fakeTurns{err: errors.New("llm down")}, commands: &fakeCommands{}}
	assert.Equal(t, "❌ **Error**: llm down", b.respond(ctx, "hi"))

	b = &Bot{turns: &fakeTurns{err: core.E(core.Cancelled, "infer", context.Canceled)}, commands: &fakeCommands{}}
	assert.Equal(t, "_cancelled_", b.respond(ctx, "hi"))
}

type senderCtx struct {
	tele.Context
	user *tele.User
}

func (c senderCtx) Sender() *tele.User { return c.user }

func TestOwnerOnly(t *testing.T) {
	calls := 0
	h := ownerOnly(42)(func(tele.Context) error {
		calls++
		return nil
	})

	require.NoError(t, h(senderCtx{user: &tele.User{ID: 7}}))
	require.NoError(t, h(senderCtx{}))
	assert.Equal(t, 0, calls)

	require.NoError(t, h(senderCtx{user: &tele.User{ID: 42}}))
	assert.Equal(t, 1, calls)
}
