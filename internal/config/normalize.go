package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeIntake(); err != nil {
		return err
	}
	c.normalizeAudio()
	c.normalizeGemini()
	if err := c.normalizeSummary(); err != nil {
		return err
	}
	c.normalizeOpenAI()
	c.normalizeHackMD()
	if err := c.normalizeDrive(); err != nil {
		return err
	}
	c.normalizeEmail()
	c.normalizeWorkflow()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	work := c.Paths.WorkDir
	entries := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.state_file", &c.Paths.StateFile, filepath.Join(work, defaultStateFileName)},
		{"paths.inbox_dir", &c.Paths.InboxDir, filepath.Join(work, "inbox")},
		{"paths.transcripts_dir", &c.Paths.TranscriptsDir, filepath.Join(work, "transcripts")},
		{"paths.parsed_dir", &c.Paths.ParsedDir, filepath.Join(work, "parsed")},
		{"paths.summaries_dir", &c.Paths.SummariesDir, filepath.Join(work, "summaries")},
		{"paths.log_dir", &c.Paths.LogDir, filepath.Join(work, "logs")},
	}
	for _, entry := range entries {
		if strings.TrimSpace(*entry.value) == "" {
			*entry.value = entry.fallback
		}
		if *entry.value, err = expandPath(*entry.value); err != nil {
			return fmt.Errorf("%s: %w", entry.key, err)
		}
	}
	return nil
}

func (c *Config) normalizeIntake() error {
	var err error
	if c.Intake.VideoDir, err = expandPath(strings.TrimSpace(c.Intake.VideoDir)); err != nil {
		return fmt.Errorf("intake.video_dir: %w", err)
	}
	if c.Intake.AudioDir, err = expandPath(strings.TrimSpace(c.Intake.AudioDir)); err != nil {
		return fmt.Errorf("intake.audio_dir: %w", err)
	}
	c.Intake.AudioExtensions = normalizeExtensions(c.Intake.AudioExtensions, defaultAudioExtensions)
	c.Intake.VideoExtensions = normalizeExtensions(c.Intake.VideoExtensions, defaultVideoExtensions)
	return nil
}

func normalizeExtensions(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}

func (c *Config) normalizeAudio() {
	c.Audio.Format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Audio.Format), "."))
	if c.Audio.Format == "" {
		c.Audio.Format = defaultAudioFormat
	}
	c.Audio.Bitrate = strings.TrimSpace(c.Audio.Bitrate)
	if c.Audio.Bitrate == "" {
		c.Audio.Bitrate = defaultAudioBitrate
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaultAudioSampleRate
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = defaultAudioChannels
	}
	if c.Audio.ChunkSampleRate <= 0 {
		c.Audio.ChunkSampleRate = defaultChunkSampleRate
	}
	if c.Audio.ChunkChannels <= 0 {
		c.Audio.ChunkChannels = defaultChunkChannels
	}
}

func (c *Config) normalizeGemini() {
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = lookupEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	if strings.TrimSpace(c.Gemini.Prompt) == "" {
		c.Gemini.Prompt = defaultTranscriptionPrompt
	}
	if c.Gemini.TimeoutSeconds <= 0 {
		c.Gemini.TimeoutSeconds = defaultGeminiTimeout
	}
	if c.Gemini.MaxRetries < 0 {
		c.Gemini.MaxRetries = 0
	}
}

func (c *Config) normalizeSummary() error {
	c.Summary.Provider = strings.ToLower(strings.TrimSpace(c.Summary.Provider))
	if c.Summary.Provider == "" {
		c.Summary.Provider = SummaryProviderGemini
	}
	c.Summary.Model = strings.TrimSpace(c.Summary.Model)
	c.Summary.PromptDocID = strings.TrimSpace(c.Summary.PromptDocID)
	var err error
	if c.Summary.PromptFile, err = expandPath(strings.TrimSpace(c.Summary.PromptFile)); err != nil {
		return fmt.Errorf("summary.prompt_file: %w", err)
	}
	if strings.TrimSpace(c.Summary.Prompt) == "" {
		c.Summary.Prompt = defaultSummaryPrompt
	}
	return nil
}

func (c *Config) normalizeOpenAI() {
	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = lookupEnv("OPENAI_API_KEY")
	}
	c.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.OpenAI.BaseURL), "/")
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = defaultOpenAIBaseURL
	}
	c.OpenAI.Model = strings.TrimSpace(c.OpenAI.Model)
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = defaultOpenAIModel
	}
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = defaultOpenAITimeout
	}
	if c.OpenAI.MaxRetries < 0 {
		c.OpenAI.MaxRetries = 0
	}
}

func (c *Config) normalizeHackMD() {
	c.HackMD.APIToken = strings.TrimSpace(c.HackMD.APIToken)
	if c.HackMD.APIToken == "" {
		c.HackMD.APIToken = lookupEnv("HACKMD_API_TOKEN", "HACKMD_TOKEN")
	}
	c.HackMD.BaseURL = strings.TrimRight(strings.TrimSpace(c.HackMD.BaseURL), "/")
	if c.HackMD.BaseURL == "" {
		c.HackMD.BaseURL = defaultHackMDBaseURL
	}
	c.HackMD.NoteURLBase = strings.TrimRight(strings.TrimSpace(c.HackMD.NoteURLBase), "/")
	if c.HackMD.NoteURLBase == "" {
		c.HackMD.NoteURLBase = defaultHackMDNoteURLBase
	}
	c.HackMD.Tag = strings.TrimSpace(c.HackMD.Tag)
	if c.HackMD.ReadPermission = strings.TrimSpace(c.HackMD.ReadPermission); c.HackMD.ReadPermission == "" {
		c.HackMD.ReadPermission = defaultHackMDReadPerm
	}
	if c.HackMD.WritePermission = strings.TrimSpace(c.HackMD.WritePermission); c.HackMD.WritePermission == "" {
		c.HackMD.WritePermission = defaultHackMDWritePerm
	}
	if c.HackMD.TimeoutSeconds <= 0 {
		c.HackMD.TimeoutSeconds = defaultHackMDTimeout
	}
	if c.HackMD.MaxRetries < 0 {
		c.HackMD.MaxRetries = 0
	}
}

func (c *Config) normalizeDrive() error {
	c.Drive.CredentialsFile = strings.TrimSpace(c.Drive.CredentialsFile)
	if c.Drive.CredentialsFile == "" {
		c.Drive.CredentialsFile = lookupEnv("GOOGLE_APPLICATION_CREDENTIALS", "GDRIVE_SERVICE_ACCOUNT_JSON")
	}
	var err error
	if c.Drive.CredentialsFile, err = expandPath(c.Drive.CredentialsFile); err != nil {
		return fmt.Errorf("drive.credentials_file: %w", err)
	}
	c.Drive.InboxFolderID = strings.TrimSpace(c.Drive.InboxFolderID)
	c.Drive.TranscribedFolderID = strings.TrimSpace(c.Drive.TranscribedFolderID)
	c.Drive.OutputFolderID = strings.TrimSpace(c.Drive.OutputFolderID)
	if c.Drive.TimeoutSeconds <= 0 {
		c.Drive.TimeoutSeconds = defaultDriveTimeout
	}
	if c.Drive.MaxRetries < 0 {
		c.Drive.MaxRetries = 0
	}
	return nil
}

func (c *Config) normalizeEmail() {
	c.Email.SMTPHost = strings.TrimSpace(c.Email.SMTPHost)
	if c.Email.SMTPHost == "" {
		c.Email.SMTPHost = defaultSMTPHost
	}
	if c.Email.SMTPPort <= 0 {
		c.Email.SMTPPort = defaultSMTPPort
	}
	c.Email.Username = strings.TrimSpace(c.Email.Username)
	if c.Email.Username == "" {
		c.Email.Username = lookupEnv("EMAIL_USER")
	}
	if c.Email.Password == "" {
		c.Email.Password = lookupEnv("SMTP_PASSWORD", "EMAIL_PASS")
	}
	c.Email.From = strings.TrimSpace(c.Email.From)
	if c.Email.From == "" {
		c.Email.From = c.Email.Username
	}
	recipients := make([]string, 0, len(c.Email.To))
	for _, addr := range c.Email.To {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	if len(recipients) == 0 {
		if value := lookupEnv("EMAIL_TO"); value != "" {
			for _, addr := range strings.Split(value, ",") {
				if trimmed := strings.TrimSpace(addr); trimmed != "" {
					recipients = append(recipients, trimmed)
				}
			}
		}
	}
	c.Email.To = recipients
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.MaxParallelItems <= 0 {
		c.Workflow.MaxParallelItems = defaultMaxParallelItems
	}
	if c.Workflow.WatchDebounceSeconds <= 0 {
		c.Workflow.WatchDebounceSeconds = defaultWatchDebounceSeconds
	}
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = filepath.Join(c.Paths.WorkDir, defaultHistoryFileName)
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// lookupEnv returns the first non-empty value among the named variables.
func lookupEnv(names ...string) string {
	for _, name := range names {
		if value, ok := os.LookupEnv(name); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
