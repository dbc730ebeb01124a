package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sandevgo/cnapse/internal/core"
	"github.com/sandevgo/cnapse/internal/service/agent"
	"github.com/sandevgo/cnapse/internal/service/command"
	"github.com/sandevgo/cnapse/internal/service/ui"
)

// TurnRunner runs one turn or refuses while another is in progress.
type TurnRunner interface {
	TryRun(ctx context.Context, input string, opts agent.Options) (agent.TurnResult, error)
}

type turnMsg struct {
	res agent.TurnResult
	err error
}

type commandMsg string

// Model is the interactive chat screen. Every turn runs inside a tea.Cmd so
// the input stays responsive; esc cancels the running turn.
type Model struct {
	ctx      context.Context
	turns    TurnRunner
	commands core.CmdRouter
	feed     *StateFeed

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	transcript []string
	busy       bool
	state      agent.State
	cancel     context.CancelFunc
	ready      bool
	width      int
}

func New(ctx context.Context, turns TurnRunner, commands core.CmdRouter, feed *StateFeed) Model {
	in := textinput.New()
	in.Placeholder = "Ask anything, /help for commands"
	in.Prompt = "› "
	in.CharLimit = 4000
	in.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return Model{
		ctx:      ctx,
		turns:    turns,
		commands: commands,
		feed:     feed,
		input:    in,
		spinner:  sp,
		width:    80,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.feed != nil {
		cmds = append(cmds, m.feed.wait())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyEsc:
			if m.busy && m.cancel != nil {
				m.cancel()
			}
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		}

	case stateMsg:
		m.state = agent.State(msg)
		return m, m.feed.wait()

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case commandMsg:
		m.appendSystem(strings.TrimSpace(string(msg)))
		return m, nil

	case turnMsg:
		m.busy = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.appendTurn(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}
	m.input.Reset()

	if command.IsExit(line) {
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}

	m.appendLine(ui.UserStyle.Render("you") + " " + line)

	if strings.HasPrefix(line, "/") {
		ctx, commands := m.ctx, m.commands
		return m, func() tea.Msg {
			out, _ := commands.Execute(ctx, line)
			return commandMsg(out)
		}
	}

	if m.busy {
		m.appendSystem("a turn is already in progress, press esc to cancel it")
		return m, nil
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.busy = true
	m.cancel = cancel
	m.state = agent.StateRouting

	turns := m.turns
	run := func() tea.Msg {
		res, err := turns.TryRun(ctx, line, agent.Options{})
		return turnMsg{res: res, err: err}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

func (m *Model) appendTurn(msg turnMsg) {
	switch {
	case errors.Is(msg.err, agent.ErrTurnInProgress):
		m.appendSystem("another turn is still running")
	case core.KindOf(msg.err) == core.Cancelled:
		m.appendSystem("cancelled")
	case msg.err != nil:
		m.appendLine(ui.ErrorStyle.Render("error") + " " + msg.err.Error())
	default:
		var sb strings.Builder
		sb.WriteString(ui.AssistantStyle.Render(msg.res.Handler) + " " + strings.TrimSpace(msg.res.Reply))
		for _, r := range msg.res.ToolResults {
			sb.WriteString("\n" + ui.SystemStyle.Render(fmt.Sprintf("  %s: %s", r.Name, ui.ToolStatus(r))))
		}
		m.appendLine(sb.String())
	}
}

func (m *Model) appendSystem(text string) {
	m.appendLine(ui.SystemStyle.Render(text))
}

func (m *Model) appendLine(line string) {
	m.transcript = append(m.transcript, line)
	if m.ready {
		m.viewport.SetContent(m.render())
		m.viewport.GotoBottom()
	}
}

func (m *Model) render() string {
	wrap := lipgloss.NewStyle().Width(m.width)
	parts := make([]string, 0, len(m.transcript))
	for _, line := range m.transcript {
		parts = append(parts, wrap.Render(line))
	}
	return strings.Join(parts, "\n\n")
}

func (m *Model) resize(width, height int) {
	m.width = width
	vh := max(height-3, 1)
	if !m.ready {
		m.viewport = viewport.New(width, vh)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vh
	}
	m.input.Width = max(width-4, 10)
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m Model) status() string {
	if m.busy {
		return m.spinner.View() + " " + m.state.String() + "  (esc to cancel)"
	}
	return "/help for commands · ctrl+c to quit"
}

func (m Model) View() string {
	if !m.ready {
		return "starting..."
	}
	return m.viewport.View() + "\n" + ui.StatusStyle.Render(m.status()) + "\n" + m.input.View()
}

// Run shows the chat until the user quits or ctx ends.
func Run(ctx context.Context, turns TurnRunner, commands core.CmdRouter, feed *StateFeed) error {
	p := tea.NewProgram(New(ctx, turns, commands, feed), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, tea.ErrProgramPanic) {
		return nil
	}
	return err
}
