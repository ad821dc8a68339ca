package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working directory configuration. Every directory defaults to
// a child of WorkDir when left empty.
type Paths struct {
	WorkDir        string `toml:"work_dir"`
	StateFile      string `toml:"state_file"`
	InboxDir       string `toml:"inbox_dir"`
	TranscriptsDir string `toml:"transcripts_dir"`
	ParsedDir      string `toml:"parsed_dir"`
	SummariesDir   string `toml:"summaries_dir"`
	LogDir         string `toml:"log_dir"`
}

// Intake selects which sources a run sweeps for new items.
type Intake struct {
	ProcessVideos     bool     `toml:"process_videos"`
	VideoDir          string   `toml:"video_dir"`
	ProcessLocalAudio bool     `toml:"process_local_audio"`
	AudioDir          string   `toml:"audio_dir"`
	ProcessDrive      bool     `toml:"process_drive"`
	AudioExtensions   []string `toml:"audio_extensions"`
	VideoExtensions   []string `toml:"video_extensions"`
}

// Audio controls video extraction and transcription chunking.
type Audio struct {
	Format          string `toml:"format"`
	Bitrate         string `toml:"bitrate"`
	SampleRate      int    `toml:"sample_rate"`
	Channels        int    `toml:"channels"`
	ChunkSeconds    int    `toml:"chunk_seconds"`
	ChunkSampleRate int    `toml:"chunk_sample_rate"`
	ChunkChannels   int    `toml:"chunk_channels"`
}

// Gemini contains the hosted speech-to-text settings.
type Gemini struct {
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Prompt         string  `toml:"prompt"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxRetries     int     `toml:"max_retries"`
}

// Summary selects the summarization provider and its prompt.
type Summary struct {
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	Prompt      string  `toml:"prompt"`
	PromptFile  string  `toml:"prompt_file"`
	PromptDocID string  `toml:"prompt_doc_id"`
}

// OpenAI contains settings for any OpenAI-compatible chat completions API.
type OpenAI struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

// HackMD contains settings for publishing summaries as notes.
type HackMD struct {
	Enabled         bool   `toml:"enabled"`
	APIToken        string `toml:"api_token"`
	BaseURL         string `toml:"base_url"`
	NoteURLBase     string `toml:"note_url_base"`
	Tag             string `toml:"tag"`
	ReadPermission  string `toml:"read_permission"`
	WritePermission string `toml:"write_permission"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	MaxRetries      int    `toml:"max_retries"`
}

// Drive contains Google Drive folder and credential settings.
type Drive struct {
	SyncEnabled         bool   `toml:"sync_enabled"`
	CredentialsFile     string `toml:"credentials_file"`
	InboxFolderID       string `toml:"inbox_folder_id"`
	TranscribedFolderID string `toml:"transcribed_folder_id"`
	OutputFolderID      string `toml:"output_folder_id"`
	UploadAudio         bool   `toml:"upload_audio"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	MaxRetries          int    `toml:"max_retries"`
}

// Email contains SMTP settings for the end-of-run report.
type Email struct {
	Enabled  bool     `toml:"enabled"`
	SMTPHost string   `toml:"smtp_host"`
	SMTPPort int      `toml:"smtp_port"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	From     string   `toml:"from"`
	To       []string `toml:"to"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunSummary     bool   `toml:"run_summary"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains pipeline execution limits.
type Workflow struct {
	MaxParallelItems     int `toml:"max_parallel_items"`
	StageTimeout         int `toml:"stage_timeout"`
	WatchDebounceSeconds int `toml:"watch_debounce_seconds"`
}

// History contains configuration for the SQLite run ledger.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for scribe.
//
// Configuration sections by subsystem:
//   - Paths: working directories and the state document
//   - Intake: local video/audio folders and the Drive inbox
//   - Audio: extraction format and transcription chunking
//   - Gemini: speech-to-text model
//   - Summary/OpenAI: summarization provider
//   - HackMD: note publishing
//   - Drive: Google Drive intake and result sync
//   - Email/Notifications: run reports
//   - Workflow/History/Logging: execution limits and observability
type Config struct {
	Paths         Paths         `toml:"paths"`
	Intake        Intake        `toml:"intake"`
	Audio         Audio         `toml:"audio"`
	Gemini        Gemini        `toml:"gemini"`
	Summary       Summary       `toml:"summary"`
	OpenAI        OpenAI        `toml:"openai"`
	HackMD        HackMD        `toml:"hackmd"`
	Drive         Drive         `toml:"drive"`
	Email         Email         `toml:"email"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	History       History       `toml:"history"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working directories a run writes into.
// Intake folders are owned by the user and are never created here.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.WorkDir,
		filepath.Dir(c.Paths.StateFile),
		c.Paths.InboxDir,
		c.Paths.TranscriptsDir,
		c.Paths.ParsedDir,
		c.Paths.SummariesDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// PublishingEnabled reports whether items pass through the notes stage.
func (c *Config) PublishingEnabled() bool {
	return c != nil && c.HackMD.Enabled
}

// SyncEnabled reports whether items pass through the remote sync stage.
func (c *Config) SyncEnabled() bool {
	return c != nil && c.Drive.SyncEnabled
}

// DriveRequired reports whether any component needs Drive credentials.
func (c *Config) DriveRequired() bool {
	if c == nil {
		return false
	}
	return c.Intake.ProcessDrive || c.Drive.SyncEnabled || strings.TrimSpace(c.Summary.PromptDocID) != ""
}

// StageTimeout returns the per-stage execution bound.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Workflow.StageTimeout) * time.Second
}

// SummaryModel returns the model name for the configured summary provider.
func (c *Config) SummaryModel() string {
	if model := strings.TrimSpace(c.Summary.Model); model != "" {
		return model
	}
	if c.Summary.Provider == SummaryProviderOpenAI {
		return c.OpenAI.Model
	}
	return c.Gemini.Model
}

// AudioCodec maps the configured extraction format onto an ffmpeg encoder.
func (c *Config) AudioCodec() string {
	switch c.Audio.Format {
	case "mp3":
		return "libmp3lame"
	case "wav":
		return "pcm_s16le"
	case "flac":
		return "flac"
	case "ogg":
		return "libvorbis"
	default:
		return "aac"
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Redacted returns a copy with API keys, tokens and passwords masked.
func (c Config) Redacted() Config {
	for _, secret := range []*string{&c.Gemini.APIKey, &c.OpenAI.APIKey, &c.HackMD.APIToken, &c.Email.Password} {
		if *secret != "" {
			*secret = "********"
		}
	}
	return c
}
