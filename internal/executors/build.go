package executors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/services/ffmpeg"
	"scribe/internal/services/gdrive"
	"scribe/internal/services/gemini"
	"scribe/internal/services/hackmd"
	"scribe/internal/services/openai"
	"scribe/internal/stage"
	"scribe/internal/state"
)

// Collaborators are the external services executors depend on. Nil entries
// leave the stages that need them unregistered.
type Collaborators struct {
	Audio        AudioTool
	Speech       SpeechToText
	Summary      Completer
	SummaryModel string
	Notes        NotePublisher
	Drive        Drive
}

// Clients holds the concrete service clients built from configuration.
type Clients struct {
	FFmpeg *ffmpeg.Service
	Gemini *gemini.Client
	OpenAI *openai.Client
	HackMD *hackmd.Client
	Drive  *gdrive.Service
}

// NewClients constructs every client the configuration enables.
func NewClients(ctx context.Context, cfg *config.Config) (*Clients, error) {
	clients := &Clients{FFmpeg: ffmpeg.NewService(deps.ResolveFFmpeg(cfg.FFmpegBinary()))}

	gem, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		Temperature: cfg.Gemini.Temperature,
		Timeout:     seconds(cfg.Gemini.TimeoutSeconds),
		MaxRetries:  cfg.Gemini.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	clients.Gemini = gem

	if cfg.Summary.Provider == config.SummaryProviderOpenAI {
		clients.OpenAI = openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.SummaryModel(),
			Temperature: cfg.Summary.Temperature,
			MaxRetries:  cfg.OpenAI.MaxRetries,
			Timeout:     seconds(cfg.OpenAI.TimeoutSeconds),
		})
	}

	if cfg.PublishingEnabled() {
		clients.HackMD = hackmd.NewClient(hackmd.Config{
			APIToken:        cfg.HackMD.APIToken,
			BaseURL:         cfg.HackMD.BaseURL,
			NoteURLBase:     cfg.HackMD.NoteURLBase,
			ReadPermission:  cfg.HackMD.ReadPermission,
			WritePermission: cfg.HackMD.WritePermission,
			Timeout:         seconds(cfg.HackMD.TimeoutSeconds),
			MaxRetries:      cfg.HackMD.MaxRetries,
		})
	}

	if cfg.DriveRequired() {
		svc, err := gdrive.NewService(ctx, gdrive.Config{
			CredentialsFile: cfg.Drive.CredentialsFile,
			Timeout:         seconds(cfg.Drive.TimeoutSeconds),
			MaxRetries:      cfg.Drive.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("drive client: %w", err)
		}
		clients.Drive = svc
	}
	return clients, nil
}

// Collaborators adapts the clients to the executor interfaces. Typed nil
// pointers are never stored in an interface.
func (c *Clients) Collaborators(cfg *config.Config) Collaborators {
	out := Collaborators{SummaryModel: cfg.SummaryModel()}
	if c.FFmpeg != nil {
		out.Audio = c.FFmpeg
	}
	if c.Gemini != nil {
		out.Speech = c.Gemini
		out.Summary = c.Gemini
	}
	if c.OpenAI != nil {
		out.Summary = c.OpenAI
	}
	if c.HackMD != nil {
		out.Notes = c.HackMD
	}
	if c.Drive != nil {
		out.Drive = c.Drive
	}
	return out
}

// RegisterCheckers installs remote existence checks for published notes and
// synced folders.
func (c *Clients) RegisterCheckers(checker *state.SchemeChecker) {
	if c.HackMD != nil {
		notes := c.HackMD
		checker.Register("hackmd", state.CheckerFunc(func(ctx context.Context, loc string) (bool, error) {
			return notes.NoteExists(ctx, state.RemoteID(loc))
		}))
	}
	if c.Drive != nil {
		drive := c.Drive
		checker.Register("gdrive", state.CheckerFunc(func(ctx context.Context, loc string) (bool, error) {
			return drive.Exists(ctx, state.RemoteID(loc))
		}))
	}
}

// Registry maps each stage to its executor. Completed has no executor; the
// orchestrator records it directly.
type Registry map[stage.Stage]stage.Executor

// Build wires one executor per stage the configuration enables.
func Build(cfg *config.Config, collab Collaborators, logger *slog.Logger) Registry {
	reg := Registry{
		stage.Parsed: NewParser(cfg.Paths.ParsedDir),
	}
	if collab.Audio != nil {
		reg[stage.AudioExtracted] = NewExtractor(collab.Audio, cfg.Paths.InboxDir, cfg.Audio.Format, ffmpeg.ExtractOptions{
			Codec:      cfg.AudioCodec(),
			Bitrate:    cfg.Audio.Bitrate,
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
		}, logger)
		if collab.Speech != nil {
			reg[stage.Transcribed] = NewTranscriber(collab.Audio, collab.Speech, TranscriberConfig{
				TranscriptsDir: cfg.Paths.TranscriptsDir,
				WorkDir:        cfg.Paths.WorkDir,
				Prompt:         cfg.Gemini.Prompt,
				Model:          cfg.Gemini.Model,
				Split: ffmpeg.SplitOptions{
					ChunkSeconds: cfg.Audio.ChunkSeconds,
					SampleRate:   cfg.Audio.ChunkSampleRate,
					Channels:     cfg.Audio.ChunkChannels,
				},
			}, logger)
		}
	}
	if collab.Summary != nil {
		prompt := &PromptSource{
			File:   cfg.Summary.PromptFile,
			DocID:  cfg.Summary.PromptDocID,
			Inline: cfg.Summary.Prompt,
			Drive:  collab.Drive,
		}
		reg[stage.Summarized] = NewSummarizer(collab.Summary, collab.SummaryModel, prompt, cfg.Paths.SummariesDir, logger)
	}
	if collab.Notes != nil && cfg.PublishingEnabled() {
		reg[stage.PublishedToNotes] = NewPublisher(collab.Notes, cfg.HackMD.Tag)
	}
	if collab.Drive != nil {
		reg[stage.AudioDownloaded] = NewDownloader(collab.Drive, cfg.Paths.InboxDir, logger)
		if cfg.SyncEnabled() {
			reg[stage.SyncedToRemoteStorage] = NewSyncer(collab.Drive, SyncerConfig{
				OutputFolderID:      cfg.Drive.OutputFolderID,
				InboxFolderID:       cfg.Drive.InboxFolderID,
				TranscribedFolderID: cfg.Drive.TranscribedFolderID,
				UploadAudio:         cfg.Drive.UploadAudio,
			}, logger)
		}
	}
	return reg
}

// Executor returns the executor registered for s.
func (r Registry) Executor(s stage.Stage) (stage.Executor, bool) {
	exec, ok := r[s]
	return exec, ok && exec != nil
}

// Health runs every executor health check in stage order.
func (r Registry) Health(ctx context.Context) []stage.Health {
	var out []stage.Health
	for _, s := range stage.All() {
		exec, ok := r.Executor(s)
		if !ok {
			continue
		}
		checker, ok := exec.(stage.HealthChecker)
		if !ok {
			out = append(out, stage.Ready(s.String()))
			continue
		}
		out = append(out, checker.HealthCheck(ctx))
	}
	return out
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
