package tokens

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter reports how many model tokens a text occupies.
type Counter interface {
	Count(text string) int
}

// Tiktoken counts with the cl100k_base encoding. The encoding is loaded on
// first use; when it cannot be loaded the counter falls back to Words.
type Tiktoken struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func NewTiktoken() *Tiktoken {
	return &Tiktoken{}
}

func (t *Tiktoken) load() {
	t.once.Do(func() {
		t.enc, t.err = tiktoken.GetEncoding("cl100k_base")
	})
}

// Err reports the encoding load failure, if any.
func (t *Tiktoken) Err() error {
	t.load()
	return t.err
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	t.load()
	if t.err != nil {
		return Words{}.Count(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Words approximates tokens by whitespace separated fields.
type Words struct{}

func (Words) Count(text string) int {
	return len(strings.Fields(text))
}
