package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

func GetRuntimePath() string {
	path := os.Getenv("CNAPSE_RUNTIME_PATH")
	if path == "" {
		path = ".cnapse"
	}

	if !filepath.IsAbs(path) {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path)
	}
	return path
}

// EnsureRuntime creates the runtime directory if needed.
func EnsureRuntime(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create runtime dir: %w", err)
	}
	return nil
}

// LoadDotEnv loads <runtime>/.env without overriding variables already set
// in the process environment. A missing file is not an error.
func LoadDotEnv(runtimePath string) error {
	err := godotenv.Load(filepath.Join(runtimePath, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
