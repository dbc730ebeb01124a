package installer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// InputStep stores free text under key. An empty answer takes defaultValue;
// it is refused when there is no default and the step is not optional.
type InputStep struct {
	key          string
	title        string
	placeholder  string
	defaultValue string
	secret       bool
	optional     bool

	skip     func(*InstallState) bool
	prepare  func(*InputStep, *InstallState)
	validate func(string) error

	input textinput.Model
	err   error
}

func (s *InputStep) Skip(state *InstallState) bool {
	return s.skip != nil && s.skip(state)
}

func (s *InputStep) Init(state *InstallState) tea.Cmd {
	if s.prepare != nil {
		s.prepare(s, state)
	}

	s.input = textinput.New()
	s.input.CharLimit = 255
	s.input.Width = 48
	s.input.Placeholder = s.placeholder
	if s.placeholder == "" {
		s.input.Placeholder = s.defaultValue
	}
	if s.secret {
		s.input.EchoMode = textinput.EchoPassword
		s.input.EchoCharacter = '•'
	}
	s.input.Focus()
	return textinput.Blink
}

func (s *InputStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		value, err := s.resolve(s.input.Value())
		if err != nil {
			s.err = err
			return s, nil
		}
		state.EnvVars[s.key] = value
		return nil, nil
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *InputStep) resolve(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = s.defaultValue
	}
	if value == "" {
		if s.optional {
			return "", nil
		}
		return "", errors.New("a value is required")
	}
	if s.validate != nil {
		if err := s.validate(value); err != nil {
			return "", err
		}
	}
	return value, nil
}

func (s *InputStep) View(state *InstallState) string {
	hint := "(press enter to confirm)"
	if s.optional {
		hint = "(optional, press enter to skip)"
	}

	view := fmt.Sprintf("Enter your %s:\n\n%s\n\n%s\n", s.title, s.input.View(), hintStyle.Render(hint))
	if s.err != nil {
		view += "\n" + errorStyle.Render(s.err.Error()) + "\n"
	}
	return view
}

// NewAPIKeyStep asks for the key of whichever provider was chosen.
func NewAPIKeyStep() *InputStep {
	return &InputStep{
		secret: true,
		prepare: func(s *InputStep, state *InstallState) {
			s.key, s.title, s.optional = apiKeyVar(state.Provider())
		},
	}
}
