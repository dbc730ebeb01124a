package memory

import (
	"strings"
	"unicode"

	"github.com/sandevgo/cnapse/pkg/tokens"
)

type Chunk struct {
	Text      string
	TokenSize int
	Index     int
}

type ChunkerConfig struct {
	MaxTokens     int
	OverlapTokens int
}

// MessageChunkerConfig sizes chunks for keyword indexing of chat messages.
func MessageChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxTokens:     200,
		OverlapTokens: 20,
	}
}

// Chunker splits text on sentence boundaries into chunks of at most
// MaxTokens, carrying OverlapTokens of trailing sentences into the next chunk.
type Chunker struct {
	cfg     ChunkerConfig
	counter tokens.Counter
}

func NewChunker(cfg ChunkerConfig, counter tokens.Counter) *Chunker {
	if counter == nil {
		counter = tokens.Words{}
	}
	if cfg.MaxTokens <= 0 {
		cfg = MessageChunkerConfig()
	}
	return &Chunker{cfg: cfg, counter: counter}
}

func (c *Chunker) Split(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)

	var (
		chunks  []Chunk
		current strings.Builder
		size    int
	)

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Text:      strings.TrimSpace(current.String()),
			TokenSize: size,
			Index:     len(chunks),
		})
		current.Reset()
		size = 0
	}

	for i, sentence := range sentences {
		n := c.counter.Count(sentence)

		if n > c.cfg.MaxTokens {
			flush()
			for _, part := range c.splitLong(sentence) {
				chunks = append(chunks, Chunk{
					Text:      part,
					TokenSize: c.counter.Count(part),
					Index:     len(chunks),
				})
			}
			continue
		}

		if size+n > c.cfg.MaxTokens && current.Len() > 0 {
			flush()
			overlap := c.overlap(sentences, i)
			current.WriteString(overlap)
			size = c.counter.Count(overlap)
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		size += n
	}
	flush()

	return chunks
}

// splitLong cuts an oversized sentence at word boundaries.
func (c *Chunker) splitLong(text string) []string {
	var (
		parts []string
		words []string
		size  int
	)
	for _, w := range strings.Fields(text) {
		n := c.counter.Count(w)
		if size+n > c.cfg.MaxTokens && len(words) > 0 {
			parts = append(parts, strings.Join(words, " "))
			words = words[:0]
			size = 0
		}
		words = append(words, w)
		size += n
	}
	if len(words) > 0 {
		parts = append(parts, strings.Join(words, " "))
	}
	return parts
}

func (c *Chunker) overlap(sentences []string, idx int) string {
	if idx == 0 || c.cfg.OverlapTokens <= 0 {
		return ""
	}

	var out []string
	size := 0
	for i := idx - 1; i >= 0 && size < c.cfg.OverlapTokens; i-- {
		n := c.counter.Count(sentences[i])
		if size+n > c.cfg.MaxTokens {
			break
		}
		out = append([]string{sentences[i]}, out...)
		size += n
	}
	return strings.Join(out, " ")
}

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true, '．': true, '…': true,
}

func splitSentences(text string) []string {
	var sentences []string

	for _, para := range splitParagraphs(text) {
		var current strings.Builder
		runes := []rune(para)

		for i, r := range runes {
			current.WriteRune(r)
			if !sentenceEnders[r] {
				continue
			}
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) || isCJK(runes[i+1]) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}

		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
	}

	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		// soft wraps
		p = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
