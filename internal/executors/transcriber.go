package executors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/services/ffmpeg"
	"scribe/internal/stage"
	"scribe/internal/transcript"
)

const chunkMimeType = "audio/wav"

// TranscriberConfig holds chunking and output settings.
type TranscriberConfig struct {
	TranscriptsDir string
	WorkDir        string
	Prompt         string
	Model          string
	Split          ffmpeg.SplitOptions
}

// Transcriber splits audio into chunks, transcribes each one and merges the
// results with offset headers. Any failed chunk fails the whole stage.
type Transcriber struct {
	tool   AudioTool
	stt    SpeechToText
	cfg    TranscriberConfig
	logger *slog.Logger
}

// NewTranscriber builds a Transcriber.
func NewTranscriber(tool AudioTool, stt SpeechToText, cfg TranscriberConfig, logger *slog.Logger) *Transcriber {
	return &Transcriber{tool: tool, stt: stt, cfg: cfg, logger: logging.NewComponentLogger(logger, "transcriber")}
}

// Execute implements stage.Executor.
func (t *Transcriber) Execute(ctx context.Context, req stage.Request) stage.Result {
	audio, err := requireAudio(req, stage.Transcribed)
	if err != nil {
		return stage.Failed(err)
	}
	chunkDir, err := os.MkdirTemp(t.cfg.WorkDir, "chunks-")
	if err != nil {
		return stage.Failed(services.Wrap(services.ErrConfiguration, stage.Transcribed.String(), "chunk dir", "create temp dir", err))
	}
	defer os.RemoveAll(chunkDir)

	chunks, err := t.tool.Split(ctx, audio, chunkDir, t.cfg.Split)
	if err != nil {
		return stage.Failed(stageErr(stage.Transcribed, "split audio", err))
	}

	texts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return stage.Failed(services.Wrap(services.ErrTimeout, stage.Transcribed.String(), "transcribe", "stage deadline reached", err))
		}
		data, err := os.ReadFile(chunk)
		if err != nil {
			return stage.Failed(services.Wrap(services.ErrExternalTool, stage.Transcribed.String(), "read chunk", filepath.Base(chunk), err))
		}
		start := time.Now()
		text, err := t.stt.Transcribe(ctx, data, chunkMimeType, chunkPrompt(t.cfg.Prompt, i+1, len(chunks)))
		if err != nil {
			return stage.Failed(stageErr(stage.Transcribed, fmt.Sprintf("chunk %d/%d", i+1, len(chunks)), err))
		}
		t.logger.Info("chunk transcribed",
			logging.String(logging.FieldItem, req.Identity),
			logging.Int("chunk", i+1),
			logging.Int("chunks", len(chunks)),
			logging.Duration("elapsed", time.Since(start)),
		)
		texts = append(texts, text)
	}

	merged := transcript.Merge(texts, time.Duration(t.cfg.Split.ChunkSeconds)*time.Second)
	dest := filepath.Join(t.cfg.TranscriptsDir, req.Identity+".txt")
	if err := writeArtifact(stage.Transcribed, dest, merged+"\n"); err != nil {
		return stage.Failed(err)
	}
	return stage.Succeeded(dest, map[string]string{
		"transcript_chunks": strconv.Itoa(len(chunks)),
		"transcript_model":  t.cfg.Model,
	})
}

// HealthCheck probes ffmpeg.
func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	return probeFFmpeg(ctx, t.tool, "transcriber")
}

func chunkPrompt(prompt string, n, total int) string {
	if total <= 1 {
		return prompt
	}
	return fmt.Sprintf("%s\n\nThis is chunk %d of %d. Transcribe only what is heard in this chunk, from its first word to its last.", prompt, n, total)
}
