package installer

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandevgo/cnapse/internal/config"
	"github.com/sandevgo/cnapse/internal/providers/llm"
)

const modelFetchTimeout = 30 * time.Second

type item struct {
	id    string
	title string
	desc  string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.id }

type modelsMsg []list.Item
type modelsErrMsg struct{ err error }

// ModelStep lists the models of the chosen provider. When the provider cannot
// be reached it falls back to typing the model name.
type ModelStep struct {
	list    list.Model
	loading bool
	fetch   func(ctx context.Context, state *InstallState) ([]list.Item, error)
}

func NewModelStep() *ModelStep {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select a model"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return &ModelStep{
		list:  l,
		fetch: fetchModels,
	}
}

func fetchModels(ctx context.Context, state *InstallState) ([]list.Item, error) {
	provider, err := llm.NewProvider(ctx, state.inferenceConfig())
	if err != nil {
		return nil, err
	}

	models, err := provider.Models(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]list.Item, 0, len(models))
	for _, m := range models {
		desc := m.Name
		if m.ContextLength > 0 {
			desc = fmt.Sprintf("%s (%d ctx)", m.Name, m.ContextLength)
		}
		items = append(items, item{id: m.ID, title: m.ID, desc: desc})
	}
	return items, nil
}

func (s *ModelStep) Init(state *InstallState) tea.Cmd {
	s.loading = true
	fetch := s.fetch
	// copy the answers so the command does not race the wizard
	snapshot := NewInstallState()
	for k, v := range state.EnvVars {
		snapshot.EnvVars[k] = v
	}

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), modelFetchTimeout)
		defer cancel()

		items, err := fetch(ctx, snapshot)
		if err != nil {
			return modelsErrMsg{err: err}
		}
		return modelsMsg(items)
	}
}

func (s *ModelStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	switch msg := msg.(type) {
	case modelsErrMsg:
		return s.manual(state, msg.err)
	case modelsMsg:
		s.loading = false
		if len(msg) == 0 {
			return s.manual(state, fmt.Errorf("the provider returned no models"))
		}
		s.list.SetItems(msg)
		s.list.SetSize(max(width, 40), max(height-6, 10))
		return s, nil
	case tea.WindowSizeMsg:
		s.list.SetSize(msg.Width, max(msg.Height-6, 10))
	case tea.KeyMsg:
		if s.loading {
			return s, nil
		}
		if msg.String() == "enter" && s.list.FilterState() != list.Filtering {
			if i, ok := s.list.SelectedItem().(item); ok {
				state.EnvVars[keyModel] = i.id
				return nil, nil
			}
		}
	}

	var cmd tea.Cmd
	s.list, cmd = s.list.Update(msg)
	return s, cmd
}

// manual replaces the list with a text input for the model name.
func (s *ModelStep) manual(state *InstallState, cause error) (Step, tea.Cmd) {
	in := &InputStep{
		key:          keyModel,
		title:        "model name",
		defaultValue: config.DefaultModel(state.Provider()),
		optional:     true,
		err:          fmt.Errorf("could not list models: %w", cause),
	}
	cmd := in.Init(state)
	return in, cmd
}

func (s *ModelStep) View(state *InstallState) string {
	if s.loading {
		return "Loading models...\n"
	}
	return s.list.View()
}
