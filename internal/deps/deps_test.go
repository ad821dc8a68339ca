package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckFFmpegOnPath(t *testing.T) {
	binDir := t.TempDir()
	ffmpegPath := filepath.Join(binDir, executableName("ffmpeg"))
	if err := os.WriteFile(ffmpegPath, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	t.Setenv("PATH", binDir)
	t.Setenv(FFmpegEnv, "")

	status := CheckFFmpeg("ffmpeg")
	if !status.Available {
		t.Fatalf("expected ffmpeg to be available, got detail %q", status.Detail)
	}
	if status.Command != ffmpegPath {
		t.Fatalf("expected command %q, got %q", ffmpegPath, status.Command)
	}
}

func TestCheckFFmpegEnvOverride(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "my-ffmpeg")
	if err := os.WriteFile(custom, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv(FFmpegEnv, custom)

	status := CheckFFmpeg("ffmpeg")
	if !status.Available || status.Command != custom {
		t.Fatalf("expected env override %q, got %#v", custom, status)
	}
}

func TestCheckFFmpegNotExecutable(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(plain, []byte("not a binary"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	t.Setenv(FFmpegEnv, "")

	status := CheckFFmpeg(plain)
	if status.Available || status.Detail == "" {
		t.Fatalf("expected non-executable ffmpeg to be reported, got %#v", status)
	}
}

func TestCheckFFmpegNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	t.Setenv(FFmpegEnv, "")
	status := CheckFFmpeg("")
	if status.Available {
		t.Fatal("expected ffmpeg resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when ffmpeg is unavailable")
	}
}

func TestResolveFFmpegPrecedence(t *testing.T) {
	t.Setenv(FFmpegEnv, "")
	if got := ResolveFFmpeg("  "); got != executableName("ffmpeg") {
		t.Fatalf("empty config resolved to %q", got)
	}
	if got := ResolveFFmpeg("/opt/ffmpeg/bin/ffmpeg"); got != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("configured binary ignored, got %q", got)
	}
	t.Setenv(FFmpegEnv, "/usr/local/bin/ffmpeg")
	if got := ResolveFFmpeg("/opt/ffmpeg/bin/ffmpeg"); got != "/usr/local/bin/ffmpeg" {
		t.Fatalf("env override ignored, got %q", got)
	}
}
