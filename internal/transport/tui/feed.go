package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandevgo/cnapse/internal/service/agent"
)

const feedSize = 32

type stateMsg agent.State

// StateFeed carries turn state transitions from the executor's goroutine to
// the bubbletea loop. Transitions are dropped when nobody keeps up.
type StateFeed struct {
	ch chan agent.State
}

func NewStateFeed() *StateFeed {
	return &StateFeed{ch: make(chan agent.State, feedSize)}
}

// Hook is installed on the executor with agent.WithStateHook.
func (f *StateFeed) Hook() agent.StateHook {
	return func(s agent.State) {
		select {
		case f.ch <- s:
		default:
		}
	}
}

func (f *StateFeed) wait() tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-f.ch)
	}
}
