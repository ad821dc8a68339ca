package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Every intake source and every optional stage starts disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Gemini.APIKey = "test"
	cfgVal.Paths.WorkDir = base
	cfgVal.Paths.StateFile = filepath.Join(base, "pipeline_state.json")
	cfgVal.Paths.InboxDir = filepath.Join(base, "inbox")
	cfgVal.Paths.TranscriptsDir = filepath.Join(base, "transcripts")
	cfgVal.Paths.ParsedDir = filepath.Join(base, "parsed")
	cfgVal.Paths.SummariesDir = filepath.Join(base, "summaries")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Intake.VideoDir = filepath.Join(base, "videos")
	cfgVal.Intake.AudioDir = filepath.Join(base, "audio")
	cfgVal.History.Path = filepath.Join(base, "history.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithVideoIntake enables the local video folder.
func WithVideoIntake() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Intake.ProcessVideos = true
	}
}

// WithAudioIntake enables the local audio folder.
func WithAudioIntake() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Intake.ProcessLocalAudio = true
	}
}

// WithDriveIntake enables the Drive inbox with placeholder folder ids.
func WithDriveIntake() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Intake.ProcessDrive = true
		b.cfg.Drive.InboxFolderID = "inbox-folder"
		b.cfg.Drive.TranscribedFolderID = "transcribed-folder"
	}
}

// WithPublishing enables HackMD publishing with a test token.
func WithPublishing() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.HackMD.Enabled = true
		b.cfg.HackMD.APIToken = "test-token"
	}
}

// WithSync enables Drive result sync with a placeholder output folder.
func WithSync() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Drive.SyncEnabled = true
		b.cfg.Drive.OutputFolderID = "output-folder"
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.WorkDir
}
