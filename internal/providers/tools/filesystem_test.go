package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sandevgo/cnapse/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestFilesystem_ReadWriteEdit(t *testing.T) {
	ctx := context.Background()
	fs := NewFilesystem(t.TempDir())

	out, err := fs.WriteFile(ctx, json.RawMessage(`{"path":"notes/a.txt","content":"hello world"}`))
	require.NoError(t, err)
	assert.Equal(t, "Wrote 11 bytes to notes/a.txt", out)

	out, err = fs.ReadFile(ctx, json.RawMessage(`{"path":"notes/a.txt"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	out, err = fs.EditFile(ctx, json.RawMessage(`{"path":"notes/a.txt","find":"world","replace":"there"}`))
	require.NoError(t, err)
	assert.Equal(t, "Replaced 1 occurrence(s) in notes/a.txt", out)

	data, err := os.ReadFile(filepath.Join(fs.BasePath, "notes/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello there", string(data))

	_, err = fs.EditFile(ctx, json.RawMessage(`{"path":"notes/a.txt","find":"absent","replace":"x"}`))
	assert.ErrorContains(t, err, "exact string not found")

	_, err = fs.ReadFile(ctx, json.RawMessage(`{"path":"missing.txt"}`))
	assert.ErrorContains(t, err, "failed to read file")

	_, err = fs.ReadFile(ctx, json.RawMessage(`{"invalid`))
	assert.ErrorContains(t, err, "invalid arguments")
}

func TestFilesystem_ListDir(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":     "abc",
		"sub/b.txt": "",
	})
	fs := NewFilesystem(root)

	out, err := fs.ListDir(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "[FILE] a.txt (3 bytes)\n[DIR]  sub/\n", out)

	out, err = fs.ListDir(ctx, json.RawMessage(`{"path":"`+filepath.Join(root, "sub")+`"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "b.txt")

	require.NoError(t, os.Mkdir(filepath.Join(root, "empty"), 0o755))
	out, err = fs.ListDir(ctx, json.RawMessage(`{"path":"empty"}`))
	require.NoError(t, err)
	assert.Equal(t, "(empty directory)", out)
}

func TestFilesystem_SearchFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":             "package main\n\nfunc main() {}\n",
		"pkg/util.go":         "package pkg\n// TODO: main thing\n",
		"pkg/readme.md":       "main docs",
		".git/config":         "main",
		"node_modules/x/i.js": "main",
		"pkg/deep/nested.go":  "package deep\n",
	})
	fs := NewFilesystem(root)

	tests := []struct {
		name string
		args string
		want string
	}{
		{
			name: "glob only",
			args: `{"pattern":"**/*.go"}`,
			want: "main.go\npkg/deep/nested.go\npkg/util.go\n",
		},
		{
			name: "glob and query",
			args: `{"pattern":"**/*.go","query":"main"}`,
			want: "main.go:1: package main\nmain.go:3: func main() {}\npkg/util.go:2: // TODO: main thing\n",
		},
		{
			name: "hidden and vendor dirs skipped",
			args: `{"query":"main"}`,
			want: "main.go:1: package main\nmain.go:3: func main() {}\npkg/readme.md:1: main docs\npkg/util.go:2: // TODO: main thing\n",
		},
		{
			name: "no matches",
			args: `{"pattern":"**/*.rs"}`,
			want: "No matches found.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := fs.SearchFiles(ctx, json.RawMessage(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	_, err := fs.SearchFiles(ctx, json.RawMessage(`{"pattern":"[unclosed"}`))
	assert.ErrorContains(t, err, "invalid pattern")
}

func TestFilesystem_ThroughExecutor(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"x.txt": "1"})

	e, err := NewExecutor(NewFilesystem(root))
	require.NoError(t, err)

	res := e.Execute(context.Background(), core.ToolCall{Name: "write_file", Args: map[string]any{"path": "y.txt"}})
	assert.False(t, res.Success)
	assert.Equal(t, "missing required argument: content", res.Error)

	res = e.Execute(context.Background(), core.ToolCall{Name: "file_info", Args: map[string]any{"path": "x.txt"}})
	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.Output, "Size: 1 bytes")
}
