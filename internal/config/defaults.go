package config

const (
	defaultConfigPath           = "~/.config/scribe/config.toml"
	defaultWorkDir              = "~/.local/share/scribe"
	defaultStateFileName        = "pipeline_state.json"
	defaultHistoryFileName      = "history.db"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	defaultAudioFormat          = "m4a"
	defaultAudioBitrate         = "192k"
	defaultAudioSampleRate      = 44100
	defaultAudioChannels        = 2
	defaultChunkSeconds         = 300
	defaultChunkSampleRate      = 16000
	defaultChunkChannels        = 1
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultGeminiTimeout        = 600
	defaultSummaryTemperature   = 0.5
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	defaultOpenAIModel          = "gpt-4o-mini"
	defaultOpenAITimeout        = 120
	defaultHackMDBaseURL        = "https://api.hackmd.io/v1"
	defaultHackMDNoteURLBase    = "https://hackmd.io"
	defaultHackMDTag            = "#transcript"
	defaultHackMDReadPerm       = "guest"
	defaultHackMDWritePerm      = "signed_in"
	defaultHackMDTimeout        = 30
	defaultDriveTimeout         = 300
	defaultMaxRetries           = 3
	defaultSMTPHost             = "smtp.gmail.com"
	defaultSMTPPort             = 465
	defaultNotifyTimeout        = 10
	defaultMaxParallelItems     = 1
	defaultStageTimeout         = 3600
	defaultWatchDebounceSeconds = 10
	defaultTranscriptionPrompt  = "Transcribe this audio verbatim. Keep the original language, mark unclear passages with [inaudible] and separate speaker turns with blank lines."
	defaultSummaryPrompt        = "Summarize the following transcript as structured markdown with a title, key points and action items."

	// SummaryProviderGemini routes summaries through the Gemini client.
	SummaryProviderGemini = "gemini"
	// SummaryProviderOpenAI routes summaries through an OpenAI-compatible API.
	SummaryProviderOpenAI = "openai"
)

var (
	defaultAudioExtensions = []string{".wav", ".mp3", ".m4a", ".flac", ".ogg", ".webm"}
	defaultVideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv", ".webm", ".m4v", ".mpg", ".mpeg"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
		},
		Intake: Intake{
			AudioExtensions: append([]string(nil), defaultAudioExtensions...),
			VideoExtensions: append([]string(nil), defaultVideoExtensions...),
		},
		Audio: Audio{
			Format:          defaultAudioFormat,
			Bitrate:         defaultAudioBitrate,
			SampleRate:      defaultAudioSampleRate,
			Channels:        defaultAudioChannels,
			ChunkSeconds:    defaultChunkSeconds,
			ChunkSampleRate: defaultChunkSampleRate,
			ChunkChannels:   defaultChunkChannels,
		},
		Gemini: Gemini{
			Model:          defaultGeminiModel,
			Prompt:         defaultTranscriptionPrompt,
			TimeoutSeconds: defaultGeminiTimeout,
			MaxRetries:     defaultMaxRetries,
		},
		Summary: Summary{
			Provider:    SummaryProviderGemini,
			Temperature: defaultSummaryTemperature,
			Prompt:      defaultSummaryPrompt,
		},
		OpenAI: OpenAI{
			BaseURL:        defaultOpenAIBaseURL,
			Model:          defaultOpenAIModel,
			TimeoutSeconds: defaultOpenAITimeout,
			MaxRetries:     defaultMaxRetries,
		},
		HackMD: HackMD{
			BaseURL:         defaultHackMDBaseURL,
			NoteURLBase:     defaultHackMDNoteURLBase,
			Tag:             defaultHackMDTag,
			ReadPermission:  defaultHackMDReadPerm,
			WritePermission: defaultHackMDWritePerm,
			TimeoutSeconds:  defaultHackMDTimeout,
			MaxRetries:      defaultMaxRetries,
		},
		Drive: Drive{
			TimeoutSeconds: defaultDriveTimeout,
			MaxRetries:     defaultMaxRetries,
		},
		Email: Email{
			SMTPHost: defaultSMTPHost,
			SMTPPort: defaultSMTPPort,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunSummary:     true,
			Errors:         true,
		},
		Workflow: Workflow{
			MaxParallelItems:     defaultMaxParallelItems,
			StageTimeout:         defaultStageTimeout,
			WatchDebounceSeconds: defaultWatchDebounceSeconds,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
