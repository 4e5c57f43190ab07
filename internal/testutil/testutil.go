// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// MustChdir changes the current working directory to dir.
// It returns a cleanup function that restores the original directory.
// The test fails immediately if the directory change fails.
func MustChdir(t testing.TB, dir string) func() {
	t.Helper()
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get current directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory to %s: %v", dir, err)
	}
	return func() {
		if err := os.Chdir(originalWd); err != nil {
			t.Errorf("failed to restore directory to %s: %v", originalWd, err)
		}
	}
}

// MustMkdirAll creates a directory along with any necessary parents.
// The test fails immediately if the operation fails.
func MustMkdirAll(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", path, err)
	}
}

// MustWriteFile writes content to path, creating parent directories.
// The test fails immediately if the operation fails.
func MustWriteFile(t testing.TB, path, content string) {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// NewCargoPackage creates a minimal cargo package named name under dir and
// returns its directory. extra is appended to the generated Cargo.toml.
func NewCargoPackage(t testing.TB, dir, name, extra string) string {
	t.Helper()
	pkgDir := filepath.Join(dir, name)
	var manifest strings.Builder
	manifest.WriteString("[package]\n")
	manifest.WriteString("name = \"" + name + "\"\n")
	manifest.WriteString("version = \"0.1.0\"\n")
	manifest.WriteString("edition = \"2021\"\n")
	if extra != "" {
		manifest.WriteString("\n" + extra + "\n")
	}
	MustWriteFile(t, filepath.Join(pkgDir, "Cargo.toml"), manifest.String())
	MustWriteFile(t, filepath.Join(pkgDir, "src", "main.rs"), "fn main() {}\n")
	return pkgDir
}

// MapEnv returns a getenv function backed by env.
func MapEnv(env map[string]string) func(string) string {
	return func(key string) string { return env[key] }
}

// MapEnviron returns an environ function backed by env.
func MapEnviron(env map[string]string) func() []string {
	return func() []string {
		out := make([]string, 0, len(env))
		for k, v := range env {
			out = append(out, k+"="+v)
		}
		return out
	}
}
