package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path (and its parent directories) holding size bytes of
// filler and returns path. Media stages only look at names and existence, so
// the content is never a real recording. size <= 0 writes one byte.
func WriteFile(t testing.TB, path string, size int) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{'B'}, max(size, 1)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
