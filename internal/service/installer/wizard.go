package installer

import (
	"errors"
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sandevgo/cnapse/internal/config"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	itemStyle  = lipgloss.NewStyle().PaddingLeft(2)
	selStyle   = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("5"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var ErrInterrupted = errors.New("setup interrupted")

// Step is a single screen of the setup wizard. Update returns nil when the
// step is complete.
type Step interface {
	Init(state *InstallState) tea.Cmd
	Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd)
	View(state *InstallState) string
}

// skipper is implemented by steps that only apply to some answers.
type skipper interface {
	Skip(state *InstallState) bool
}

func getSteps(runtimePath string, overwrite bool) []Step {
	notOllama := func(s *InstallState) bool { return s.Provider() != config.ProviderOllama }
	notCompatible := func(s *InstallState) bool {
		return s.Provider() != config.ProviderOpenAICompatible && s.Provider() != config.ProviderCustom
	}
	noTelegram := func(s *InstallState) bool { return !s.telegram() }

	return []Step{
		NewChoiceStep(keyProvider, "Select your inference provider:",
			choice{config.ProviderOllama, "Ollama (local)"},
			choice{config.ProviderOpenAI, "OpenAI"},
			choice{config.ProviderAnthropic, "Anthropic"},
			choice{config.ProviderOpenRouter, "OpenRouter"},
			choice{config.ProviderOpenAICompatible, "OpenAI-compatible endpoint"},
		),
		&InputStep{
			key:          "OLLAMA_BASE_URL",
			title:        "Ollama URL",
			defaultValue: "http://127.0.0.1:11434",
			skip:         notOllama,
		},
		&InputStep{
			key:   "LLM_BASE_URL",
			title: "Endpoint base URL",
			skip:  notCompatible,
		},
		NewAPIKeyStep(),
		NewModelStep(),
		NewChoiceStep("CNAPSE_RETRIEVER", "How should past conversations be searched?",
			choice{config.RetrieverSubstring, "Substring match (default)"},
			choice{config.RetrieverBM25, "Keyword ranking"},
		),
		NewChoiceStep(keyChannel, "Where will you chat?",
			choice{channelCLI, "Terminal only"},
			choice{channelTelegram, "Terminal and Telegram"},
		),
		&InputStep{
			key:         "TELEGRAM_TOKEN",
			title:       "Telegram Bot Token",
			placeholder: "123456789:ABCDEF...",
			secret:      true,
			skip:        noTelegram,
		},
		&InputStep{
			key:         "TELEGRAM_OWNER_ID",
			title:       "Telegram User ID (owner)",
			placeholder: "123456789",
			skip:        noTelegram,
			validate: func(v string) error {
				if _, err := strconv.ParseInt(v, 10, 64); err != nil {
					return fmt.Errorf("user id must be a number")
				}
				return nil
			},
		},
		NewSaveEnvStep(runtimePath, overwrite),
	}
}

type errMsg error
type nextMsg struct{}

// model is the main Bubble Tea model that orchestrates the steps
type model struct {
	steps       []Step
	currentStep int
	state       *InstallState
	quitting    bool
	err         error
	width       int
	height      int
}

func newModel(steps []Step) model {
	return model{
		steps: steps,
		state: NewInstallState(),
	}
}

func (m model) Init() tea.Cmd {
	if len(m.steps) == 0 {
		return tea.Quit
	}
	return m.steps[0].Init(m.state)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, tea.Quit
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case errMsg:
		m.err = msg
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	}

	if m.currentStep >= len(m.steps) {
		return m, tea.Quit
	}

	nextStep, cmd := m.steps[m.currentStep].Update(msg, m.state, m.width, m.height)
	if nextStep == nil {
		return m.advance()
	}

	// A step may replace itself, e.g. when a model list falls back to input.
	m.steps[m.currentStep] = nextStep
	return m, cmd
}

// advance moves to the next step that applies to the answers so far.
func (m model) advance() (tea.Model, tea.Cmd) {
	for {
		m.currentStep++
		if m.currentStep >= len(m.steps) {
			return m, tea.Quit
		}
		if s, ok := m.steps[m.currentStep].(skipper); ok && s.Skip(m.state) {
			continue
		}
		return m, m.steps[m.currentStep].Init(m.state)
	}
}

func (m model) View() string {
	if m.quitting {
		return "Setup cancelled.\n"
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n(press ctrl+c to quit)\n"
	}

	if m.currentStep >= len(m.steps) {
		return "Configuration complete!\n"
	}

	return titleStyle.Render("cnapse setup") + "\n\n" + m.steps[m.currentStep].View(m.state)
}

// RunWizard asks for the provider, model and transports and writes them to
// <runtimePath>/.env.
func RunWizard(runtimePath string, overwrite bool) (*InstallState, error) {
	p := tea.NewProgram(newModel(getSteps(runtimePath, overwrite)), tea.WithAltScreen())
	m, err := p.Run()
	if err != nil {
		return nil, err
	}

	finalModel := m.(model)
	if finalModel.quitting {
		return nil, ErrInterrupted
	}
	if finalModel.err != nil {
		return nil, finalModel.err
	}

	return finalModel.state, nil
}
