package agent

import (
	"context"
	"errors"
	"sync"
)

var ErrTurnInProgress = errors.New("a turn is already in progress")

// Conversation serializes turns and session changes over one memory. Every
// surface of a process shares a single Conversation.
type Conversation struct {
	mu     sync.Mutex
	exec   *Executor
	memory Memory
}

func NewConversation(exec *Executor, memory Memory) *Conversation {
	return &Conversation{exec: exec, memory: memory}
}

// Run waits for any turn in progress and then runs one.
func (c *Conversation) Run(ctx context.Context, input string, opts Options) (TurnResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exec.Run(ctx, input, opts)
}

// TryRun refuses with ErrTurnInProgress instead of waiting.
func (c *Conversation) TryRun(ctx context.Context, input string, opts Options) (TurnResult, error) {
	if !c.mu.TryLock() {
		return TurnResult{}, ErrTurnInProgress
	}
	defer c.mu.Unlock()
	return c.exec.Run(ctx, input, opts)
}

func (c *Conversation) NewSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memory.NewSession(ctx)
}

func (c *Conversation) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memory.Clear(ctx)
}
