package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWords(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one two\tthree\nfour", 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Words{}.Count(tt.text), tt.text)
	}
}

func TestTiktoken_EmptyText(t *testing.T) {
	assert.Equal(t, 0, NewTiktoken().Count(""))
}
