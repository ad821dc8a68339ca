package executors

import (
	"context"
	"log/slog"
	"path/filepath"

	"scribe/internal/logging"
	"scribe/internal/services/ffmpeg"
	"scribe/internal/stage"
)

// Extractor pulls the audio track out of a video file into the inbox.
type Extractor struct {
	tool     AudioTool
	inboxDir string
	format   string
	opts     ffmpeg.ExtractOptions
	logger   *slog.Logger
}

// NewExtractor builds an Extractor writing <inboxDir>/<identity>.<format>.
func NewExtractor(tool AudioTool, inboxDir, format string, opts ffmpeg.ExtractOptions, logger *slog.Logger) *Extractor {
	return &Extractor{tool: tool, inboxDir: inboxDir, format: format, opts: opts, logger: logging.NewComponentLogger(logger, "extractor")}
}

// Execute implements stage.Executor.
func (e *Extractor) Execute(ctx context.Context, req stage.Request) stage.Result {
	source, err := requireFile(req.SourcePath, stage.AudioExtracted)
	if err != nil {
		return stage.Failed(err)
	}
	dest := filepath.Join(e.inboxDir, req.Identity+"."+e.format)
	if err := e.tool.ExtractAudio(ctx, source, dest, e.opts); err != nil {
		return stage.Failed(stageErr(stage.AudioExtracted, "ffmpeg extract", err))
	}
	e.logger.Debug("audio extracted", logging.String("source", source), logging.String("dest", dest))
	return stage.Succeeded(dest, map[string]string{"audio_format": e.format})
}

// HealthCheck probes the ffmpeg binary when the tool supports it.
func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	return probeFFmpeg(ctx, e.tool, "extractor")
}

func probeFFmpeg(ctx context.Context, tool AudioTool, name string) stage.Health {
	prober, ok := tool.(interface{ Version(context.Context) error })
	if !ok {
		return stage.Ready(name)
	}
	if err := prober.Version(ctx); err != nil {
		return stage.NotReady(name, err)
	}
	return stage.Ready(name)
}
