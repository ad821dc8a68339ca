package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"scribe/internal/config"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "HACKMD_API_TOKEN", "HACKMD_TOKEN",
		"GOOGLE_APPLICATION_CREDENTIALS", "GDRIVE_SERVICE_ACCOUNT_JSON", "SMTP_PASSWORD", "EMAIL_PASS",
		"EMAIL_USER", "EMAIL_TO",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaultConfigUsesEnvKeyAndExpandsPaths(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "scribe")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Paths.StateFile != filepath.Join(wantWork, "pipeline_state.json") {
		t.Fatalf("unexpected state file: %q", cfg.Paths.StateFile)
	}
	if cfg.Paths.TranscriptsDir != filepath.Join(wantWork, "transcripts") {
		t.Fatalf("unexpected transcripts dir: %q", cfg.Paths.TranscriptsDir)
	}
	if cfg.History.Path != filepath.Join(wantWork, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.History.Path)
	}
	if cfg.Gemini.APIKey != "test-key" {
		t.Fatalf("expected Gemini key from env, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Summary.Provider != config.SummaryProviderGemini {
		t.Fatalf("unexpected summary provider %q", cfg.Summary.Provider)
	}
	if cfg.SummaryModel() != cfg.Gemini.Model {
		t.Fatalf("expected summary model to follow gemini model, got %q", cfg.SummaryModel())
	}
	if cfg.Audio.ChunkSeconds != 300 {
		t.Fatalf("unexpected chunk seconds %d", cfg.Audio.ChunkSeconds)
	}
	if cfg.AudioCodec() != "aac" {
		t.Fatalf("expected aac codec for m4a, got %q", cfg.AudioCodec())
	}
	if cfg.PublishingEnabled() || cfg.SyncEnabled() || cfg.DriveRequired() {
		t.Fatal("expected publishing and drive disabled by default")
	}
	if cfg.Workflow.MaxParallelItems != 1 {
		t.Fatalf("expected sequential processing by default, got %d", cfg.Workflow.MaxParallelItems)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.InboxDir, cfg.Paths.TranscriptsDir, cfg.Paths.ParsedDir, cfg.Paths.SummariesDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearCredentialEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "scribe.toml")

	type payload struct {
		Paths struct {
			WorkDir string `toml:"work_dir"`
		} `toml:"paths"`
		Gemini struct {
			APIKey string `toml:"api_key"`
			Model  string `toml:"model"`
		} `toml:"gemini"`
		Audio struct {
			Format       string `toml:"format"`
			ChunkSeconds int    `toml:"chunk_seconds"`
		} `toml:"audio"`
		Workflow struct {
			MaxParallelItems int `toml:"max_parallel_items"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Paths.WorkDir = filepath.Join(tempDir, "work")
	custom.Gemini.APIKey = "abc123"
	custom.Gemini.Model = "gemini-test"
	custom.Audio.Format = ".MP3"
	custom.Audio.ChunkSeconds = 120
	custom.Workflow.MaxParallelItems = 4
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Gemini.APIKey != "abc123" || cfg.Gemini.Model != "gemini-test" {
		t.Fatalf("unexpected gemini settings: %+v", cfg.Gemini)
	}
	if cfg.Audio.Format != "mp3" || cfg.AudioCodec() != "libmp3lame" {
		t.Fatalf("expected normalized mp3 format, got %q/%q", cfg.Audio.Format, cfg.AudioCodec())
	}
	if cfg.Audio.ChunkSeconds != 120 {
		t.Fatalf("expected chunk seconds 120, got %d", cfg.Audio.ChunkSeconds)
	}
	if cfg.Workflow.MaxParallelItems != 4 {
		t.Fatalf("expected max parallel 4, got %d", cfg.Workflow.MaxParallelItems)
	}
	if cfg.Paths.ParsedDir != filepath.Join(tempDir, "work", "parsed") {
		t.Fatalf("expected parsed dir under custom work dir, got %q", cfg.Paths.ParsedDir)
	}
}

func TestConfigFileValuesWinOverEnvFallbacks(t *testing.T) {
	clearCredentialEnv(t)
	configPath := filepath.Join(t.TempDir(), "scribe.toml")
	contents := `
[gemini]
api_key = "file-gemini"

[hackmd]
enabled = true
api_token = "file-hackmd"
`
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GEMINI_API_KEY", "env-gemini")
	t.Setenv("HACKMD_API_TOKEN", "env-hackmd")
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("SMTP_PASSWORD", "env-smtp")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Gemini.APIKey != "file-gemini" {
		t.Errorf("expected file gemini key, got %q", cfg.Gemini.APIKey)
	}
	if cfg.HackMD.APIToken != "file-hackmd" {
		t.Errorf("expected file hackmd token, got %q", cfg.HackMD.APIToken)
	}
	if cfg.OpenAI.APIKey != "env-openai" {
		t.Errorf("expected OpenAI key from env, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.Email.Password != "env-smtp" {
		t.Errorf("expected SMTP password from env, got %q", cfg.Email.Password)
	}
}

func TestLegacyEnvNamesAreAccepted(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("HACKMD_TOKEN", "legacy-token")
	t.Setenv("EMAIL_TO", "a@example.com, b@example.com")
	t.Setenv("HOME", t.TempDir())

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Gemini.APIKey != "google-key" {
		t.Fatalf("expected GOOGLE_API_KEY fallback, got %q", cfg.Gemini.APIKey)
	}
	if cfg.HackMD.APIToken != "legacy-token" {
		t.Fatalf("expected HACKMD_TOKEN fallback, got %q", cfg.HackMD.APIToken)
	}
	if len(cfg.Email.To) != 2 || cfg.Email.To[1] != "b@example.com" {
		t.Fatalf("unexpected recipients %v", cfg.Email.To)
	}
}

func TestLoadFailsWithoutGeminiKey(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("HOME", t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected missing gemini key error")
	}
	if !strings.Contains(err.Error(), "gemini.api_key") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[gemini]") {
		t.Fatalf("sample config missing gemini section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.WorkDir, "scribe") {
		t.Fatalf("expected work dir to contain scribe, got %q", cfg.Paths.WorkDir)
	}
	if cfg.Audio.ChunkSeconds != 300 {
		t.Fatalf("unexpected sample chunk seconds %d", cfg.Audio.ChunkSeconds)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		cfg.Gemini.APIKey = "key"
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"video dir", func(c *config.Config) { c.Intake.ProcessVideos = true }, "intake.video_dir"},
		{"audio dir", func(c *config.Config) { c.Intake.ProcessLocalAudio = true }, "intake.audio_dir"},
		{"drive inbox", func(c *config.Config) { c.Intake.ProcessDrive = true }, "drive.inbox_folder_id"},
		{"hackmd token", func(c *config.Config) { c.HackMD.Enabled = true }, "hackmd.api_token"},
		{"openai key", func(c *config.Config) { c.Summary.Provider = config.SummaryProviderOpenAI }, "openai.api_key"},
		{"provider", func(c *config.Config) { c.Summary.Provider = "claude" }, "summary.provider"},
		{"drive creds", func(c *config.Config) { c.Drive.SyncEnabled = true; c.Drive.OutputFolderID = "out" }, "drive.credentials_file"},
		{"drive output", func(c *config.Config) { c.Drive.SyncEnabled = true; c.Drive.CredentialsFile = "/tmp/sa.json" }, "drive.output_folder_id"},
		{"email recipients", func(c *config.Config) {
			c.Email.Enabled = true
			c.Email.Username = "me"
			c.Email.Password = "pw"
		}, "email.to"},
		{"stage timeout", func(c *config.Config) { c.Workflow.StageTimeout = 0 }, "workflow.stage_timeout"},
		{"chunk seconds", func(c *config.Config) { c.Audio.ChunkSeconds = -1 }, "audio.chunk_seconds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with key should validate: %v", err)
	}
}
