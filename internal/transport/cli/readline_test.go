package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/internal/service/agent"
	"github.com/stretchr/testify/assert"
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

type fakeCommands struct{}

func (fakeCommands) Execute(_ context.Context, input string) (string, bool) {
	if !strings.HasPrefix(input, "/") {
		return "", false
	}
	return "ran " + input + "\n", true
}

func (fakeCommands) ListCommands() []core.Command { return nil }

func TestHandle(t *testing.T) {
	color.NoColor = true
	ctx := context.Background()

	turns := &fakeTurns{res: agent.TurnResult{Handler: "shell", Reply: "done"}}
	r := &ReadLine{turns: turns, commands: fakeCommands{}}

	var out bytes.Buffer
	assert.False(t, r.handle(ctx, &out, "   "))
	assert.False(t, r.handle(ctx, &out, "/status"))
	assert.False(t, r.handle(ctx, &out, "run the tests"))
	assert.True(t, r.handle(ctx, &out, "/exit"))

	assert.Equal(t, []string{"run the tests"}, turns.inputs)
	assert.Equal(t, "ran /status\n[shell]\ndone\n", out.String())
}

func TestHandle_Errors(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	r := &ReadLine{turns: &fakeTurns{err: core.E(core.Cancelled, "infer", context.Canceled)}, commands: fakeCommands{}}
	r.handle(ctx, &out, "hello")
	assert.Equal(t, "cancelled\n", out.String())

	out.Reset()
	r = &ReadLine{turns: &fakeTurns{err: errors.New("boom")}, commands: fakeCommands{}}
	r.handle(ctx, &out, "hello")
	assert.Equal(t, "Error: boom\n", out.String())
}
