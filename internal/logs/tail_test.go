package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scribe/internal/logs"
)

func TestLastReturnsTrailingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines, offset, err := logs.Last(path, 2)
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}

	lines, _, err = logs.Last(path, 10)
	if err != nil || len(lines) != 3 {
		t.Fatalf("expected all 3 lines, got %#v (%v)", lines, err)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "none.log"), 5)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("expected empty result, got %#v %d %v", lines, offset, err)
	}
}

func TestReadFromSkipsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.log")
	if err := os.WriteFile(path, []byte("one\ntwo\npar"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	lines, offset, err := logs.ReadFrom(path, 4)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(lines) != 1 || lines[0] != "two" || offset != 8 {
		t.Fatalf("unexpected read: %#v offset=%d", lines, offset)
	}

	lines, offset, err = logs.ReadFrom(path, 100)
	if err != nil || len(lines) != 2 || offset != 8 {
		t.Fatalf("expected restart after truncation, got %#v offset=%d err=%v", lines, offset, err)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scribe.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, offset, err := logs.Last(path, 0)
	if err != nil {
		t.Fatalf("last: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 50*time.Millisecond, func(line string) { got <- line })
	}()

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("next\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	select {
	case line := <-got:
		if line != "next" {
			t.Fatalf("expected appended line, got %q", line)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for appended line")
	}
	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
