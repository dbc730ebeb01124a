package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

const readFileSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "The path to the file to read" }
  },
  "required": ["path"]
}
`

const writeFileSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "The path to the file to write" },
    "content": { "type": "string", "description": "The content to write to the file" }
  },
  "required": ["path", "content"]
}
`

const editFileSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "The path to the file to edit" },
    "find": { "type": "string", "description": "The exact string to find in the file" },
    "replace": { "type": "string", "description": "The string to replace it with" }
  },
  "required": ["path", "find", "replace"]
}
`

const listDirSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "The directory path to list, defaults to the working directory" }
  }
}
`

const searchFilesSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "The directory to search in, defaults to the working directory" },
    "pattern": { "type": "string", "description": "Glob pattern for file names, supports ** (default **/*)" },
    "query": { "type": "string", "description": "Optional string the file content must contain" }
  }
}
`

const fileInfoSchema = `
{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "The path to the file or directory to inspect" }
  },
  "required": ["path"]
}
`

const (
	maxSearchMatches = 100
	maxSearchFiles   = 5000
	maxLineDisplay   = 200
)

var errStopSearch = errors.New("stop search")

type Filesystem struct {
	BasePath string
}

func NewFilesystem(basePath string) *Filesystem {
	if basePath == "" {
		basePath, _ = os.Getwd()
	}
	return &Filesystem{BasePath: basePath}
}

func (f *Filesystem) resolvePath(p string) string {
	if p == "" {
		return f.BasePath
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(f.BasePath, p)
}

func (f *Filesystem) ReadFile(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}

	content, err := os.ReadFile(f.resolvePath(input.Path))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(content), nil
}

func (f *Filesystem) WriteFile(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}

	path := f.resolvePath(input.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}
	if err := os.WriteFile(path, []byte(input.Content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(input.Content), input.Path), nil
}

func (f *Filesystem) EditFile(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path    string `json:"path"`
		Find    string `json:"find"`
		Replace string `json:"replace"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if input.Find == "" {
		return "", errors.New("find must not be empty")
	}

	path := f.resolvePath(input.Path)
	contentBytes, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	content := string(contentBytes)

	count := strings.Count(content, input.Find)
	if count == 0 {
		return "", errors.New("exact string not found in file")
	}

	newContent := strings.ReplaceAll(content, input.Find, input.Replace)
	if err := os.WriteFile(path, []byte(newContent), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("Replaced %d occurrence(s) in %s", count, input.Path), nil
}

func (f *Filesystem) ListDir(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(f.resolvePath(input.Path))
	if err != nil {
		return "", fmt.Errorf("failed to list directory: %w", err)
	}
	if len(entries) == 0 {
		return "(empty directory)", nil
	}

	var sb strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintf(&sb, "[DIR]  %s/\n", entry.Name())
			continue
		}
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		fmt.Fprintf(&sb, "[FILE] %s (%d bytes)\n", entry.Name(), size)
	}
	return sb.String(), nil
}

// SearchFiles matches file names against a doublestar glob and, when query is
// set, lists the lines containing it.
func (f *Filesystem) SearchFiles(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path    string `json:"path"`
		Pattern string `json:"pattern"`
		Query   string `json:"query"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if input.Pattern == "" {
		input.Pattern = "**/*"
	}
	if !doublestar.ValidatePattern(input.Pattern) {
		return "", fmt.Errorf("invalid pattern: %s", input.Pattern)
	}

	root := f.resolvePath(input.Path)
	var paths []string
	err := doublestar.GlobWalk(os.DirFS(root), input.Pattern, func(path string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || skipPath(path) {
			return nil
		}
		paths = append(paths, path)
		if len(paths) >= maxSearchFiles {
			return errStopSearch
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopSearch) {
		return "", fmt.Errorf("search failed: %w", err)
	}
	sort.Strings(paths)

	var results strings.Builder
	matchCount := 0
	for _, path := range paths {
		if input.Query == "" {
			results.WriteString(path + "\n")
			matchCount++
		} else {
			n, err := grepFile(filepath.Join(root, path), path, input.Query, maxSearchMatches-matchCount, &results)
			if err != nil {
				continue
			}
			matchCount += n
		}

		if matchCount >= maxSearchMatches {
			results.WriteString("... (too many matches, stopping search)\n")
			break
		}
	}

	if matchCount == 0 {
		return "No matches found.", nil
	}
	return results.String(), nil
}

func skipPath(path string) bool {
	for _, part := range strings.Split(path, "/") {
		if part == "vendor" || part == "node_modules" {
			return true
		}
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func grepFile(fullPath, displayPath, query string, limit int, out *strings.Builder) (int, error) {
	file, err := os.Open(fullPath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	// null byte in the first 512 bytes means binary
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return 0, nil
		}
	}
	if _, err := file.Seek(0, 0); err != nil {
		return 0, err
	}

	found := 0
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() && found < limit {
		lineNum++
		line := scanner.Text()
		if !utf8.ValidString(line) || !strings.Contains(line, query) {
			continue
		}

		displayLine := strings.TrimSpace(line)
		if len(displayLine) > maxLineDisplay {
			displayLine = displayLine[:maxLineDisplay] + "..."
		}
		fmt.Fprintf(out, "%s:%d: %s\n", displayPath, lineNum, displayLine)
		found++
	}
	return found, nil
}

func (f *Filesystem) FileInfo(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}

	info, err := os.Stat(f.resolvePath(input.Path))
	if err != nil {
		return "", fmt.Errorf("failed to get file info: %w", err)
	}

	return fmt.Sprintf(
		"Path: %s\nSize: %d bytes\nIsDir: %t\nMode: %s\nModTime: %s\n",
		input.Path,
		info.Size(),
		info.IsDir(),
		info.Mode(),
		info.ModTime().Format(time.RFC3339),
	), nil
}

func (f *Filesystem) GetDefinitions() map[string]Definition {
	return map[string]Definition{
		"read_file":    {"Read a file from the local filesystem", readFileSchema, f.ReadFile},
		"write_file":   {"Write content to a file, creating parent directories", writeFileSchema, f.WriteFile},
		"edit_file":    {"Edit a file by replacing an exact string with a new one", editFileSchema, f.EditFile},
		"list_dir":     {"List contents of a directory", listDirSchema, f.ListDir},
		"search_files": {"Find files by glob pattern, optionally containing a string", searchFilesSchema, f.SearchFiles},
		"file_info":    {"Get metadata about a file (size, mode, modtime)", fileInfoSchema, f.FileInfo},
	}
}
