package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// MustRepoRoot walks up from this file to the directory holding go.mod.
func MustRepoRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("repo root: caller unknown")
	}
	for dir := filepath.Dir(file); ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		if filepath.Dir(dir) == dir {
			t.Fatal("repo root: go.mod not found")
		}
	}
}

// RepoPath joins elems onto the repository root.
func RepoPath(t testing.TB, elems ...string) string {
	t.Helper()
	return filepath.Join(append([]string{MustRepoRoot(t)}, elems...)...)
}
