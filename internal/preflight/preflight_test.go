package preflight

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/stage"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckDiskSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass with 1 byte minimum, got: %s", result.Detail)
	}
	if result := CheckDiskSpace("space", dir, math.MaxUint64); result.Passed {
		t.Fatal("expected failure with impossible minimum")
	}
	if result := CheckDiskSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckCredentialsFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(good, []byte(`{"type":"service_account","client_email":"bot@proj.iam.gserviceaccount.com"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if r := CheckCredentialsFile("drive", good); !r.Passed || r.Detail != "bot@proj.iam.gserviceaccount.com" {
		t.Fatalf("expected pass with client email, got %#v", r)
	}
	if r := CheckCredentialsFile("drive", bad); r.Passed {
		t.Fatal("expected failure for invalid json")
	}
	if r := CheckCredentialsFile("drive", ""); r.Passed {
		t.Fatal("expected failure for unset path")
	}
}

func TestCheckSummaryPrompt(t *testing.T) {
	cfg := config.Default()
	if r := CheckSummaryPrompt(&cfg); !r.Passed || r.Detail != "inline" {
		t.Fatalf("expected inline default prompt, got %#v", r)
	}
	cfg.Summary.PromptFile = filepath.Join(t.TempDir(), "missing.md")
	if r := CheckSummaryPrompt(&cfg); r.Passed {
		t.Fatal("expected failure for missing prompt file")
	}
	cfg.Summary = config.Summary{}
	if r := CheckSummaryPrompt(&cfg); r.Passed {
		t.Fatal("expected failure with no prompt source")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_GatesOptionalChecks(t *testing.T) {
	binDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(binDir, "ffmpeg"), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", binDir)
	t.Setenv(deps.FFmpegEnv, "")

	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Gemini.APIKey = "key"

	names := map[string]Result{}
	for _, r := range RunAll(&cfg) {
		names[r.Name] = r
	}
	for _, want := range []string{"FFmpeg", "Work directory", "Work directory free space", "Gemini API key", "Summary prompt"} {
		r, ok := names[want]
		if !ok {
			t.Fatalf("missing check %q in %v", want, names)
		}
		if want != "Work directory free space" && !r.Passed {
			t.Errorf("check %q failed: %s", want, r.Detail)
		}
	}
	for _, unwanted := range []string{"Video intake", "Audio intake", "OpenAI API key", "HackMD API token", "Drive credentials"} {
		if _, ok := names[unwanted]; ok {
			t.Errorf("unexpected check %q for disabled feature", unwanted)
		}
	}

	cfg.HackMD.Enabled = true
	cfg.Intake.ProcessDrive = true
	failed := map[string]bool{}
	for _, r := range Failed(RunAll(&cfg)) {
		failed[r.Name] = true
	}
	if !failed["HackMD API token"] || !failed["Drive credentials"] {
		t.Fatalf("expected missing hackmd token and drive credentials to fail, got %v", failed)
	}
}

type stubHealth []stage.Health

func (s stubHealth) Health(context.Context) []stage.Health { return s }

func TestCheckStages(t *testing.T) {
	results := CheckStages(context.Background(), stubHealth{
		stage.Ready("audio_extracted"),
		stage.NotReady("notes_published", errors.New("token rejected")),
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Passed || results[0].Detail != "ready" || results[0].Name != "Stage audio_extracted" {
		t.Fatalf("unexpected healthy result %#v", results[0])
	}
	if results[1].Passed || results[1].Detail != "token rejected" {
		t.Fatalf("unexpected unhealthy result %#v", results[1])
	}
	if CheckStages(context.Background(), nil) != nil {
		t.Fatal("expected nil for nil source")
	}
}
