package router

import (
	"slices"
	"strings"
)

const (
	Coder  = "coder"
	Filer  = "filer"
	Shell  = "shell"
	Memory = "memory"
	App    = "app"

	DefaultHandler = Shell
)

// Scorer rates how well a request fits a handler, in [0, 1].
type Scorer interface {
	Score(request string) float64
}

// KeywordScorer scores Hit when the lowercased request contains any keyword.
type KeywordScorer struct {
	Keywords []string
	Hit      float64
}

func (k KeywordScorer) Score(request string) float64 {
	lower := strings.ToLower(request)
	for _, kw := range k.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return k.Hit
		}
	}
	return 0
}

// Descriptor is the static description of a built-in handler.
type Descriptor struct {
	name        string
	description string
	prompt      string
	tools       []string
	scorer      Scorer
}

func (d *Descriptor) Name() string                 { return d.name }
func (d *Descriptor) Description() string          { return d.description }
func (d *Descriptor) Score(request string) float64 { return d.scorer.Score(request) }
func (d *Descriptor) Tools() []string              { return slices.Clone(d.tools) }
func (d *Descriptor) SystemPrompt() string         { return d.prompt }

func NewDescriptor(name, description, prompt string, tools []string, scorer Scorer) *Descriptor {
	return &Descriptor{
		name:        name,
		description: description,
		prompt:      prompt,
		tools:       tools,
		scorer:      scorer,
	}
}

// Override replaces parts of a built-in handler. Empty fields keep the default.
type Override struct {
	Keywords []string `yaml:"keywords"`
	Prompt   string   `yaml:"prompt"`
}

func keywords(words ...string) KeywordScorer {
	return KeywordScorer{Keywords: words, Hit: 0.9}
}

// Builtin returns the default handler set in registration order.
func Builtin(overrides map[string]Override) []Handler {
	handlers := []*Descriptor{
		NewDescriptor(Coder,
			"Code generation, editing and debugging",
			coderPrompt,
			[]string{"read_file", "write_file", "edit_file", "run_command"},
			keywords("code", "write", "function", "debug"),
		),
		NewDescriptor(Filer,
			"File system operations: list, read, write, search",
			filerPrompt,
			[]string{"list_dir", "read_file", "write_file", "search_files", "file_info"},
			keywords("file", "folder", "directory", "search"),
		),
		NewDescriptor(Shell,
			"Shell commands, environment, processes and local network checks",
			shellPrompt,
			[]string{
				"run_command", "get_env", "set_env", "list_processes", "kill_process",
				"check_port", "find_available_port", "check_connection", "get_local_ip", "list_interfaces",
				"copy_to_clipboard", "read_clipboard",
			},
			keywords("run", "execute", "command", "process", "port"),
		),
		NewDescriptor(Memory,
			"Recall earlier conversations and keep notes",
			memoryPrompt,
			[]string{"search_memory", "save_note", "get_notes"},
			keywords("remember", "recall", "history", "yesterday", "earlier"),
		),
		NewDescriptor(App,
			"Small web apps and dashboards",
			appPrompt,
			[]string{"write_file", "list_dir", "http_get"},
			keywords("app", "webapp", "website", "dashboard", "interface"),
		),
	}

	out := make([]Handler, 0, len(handlers))
	for _, d := range handlers {
		if o, ok := overrides[d.name]; ok {
			if len(o.Keywords) > 0 {
				d.scorer = keywords(o.Keywords...)
			}
			if strings.TrimSpace(o.Prompt) != "" {
				d.prompt = o.Prompt
			}
		}
		out = append(out, d)
	}
	return out
}

// NewDefault builds a router over the built-in handlers with shell as fallback.
func NewDefault(overrides map[string]Override) *Router {
	r, err := New(DefaultHandler, Builtin(overrides)...)
	if err != nil {
		// built-in names are unique and include the fallback
		panic(err)
	}
	return r
}
