package executors

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/stage"
)

// PromptSource resolves the summary instruction. The first non-empty source
// wins: a local prompt file, then a Google Doc exported through Drive, then
// the inline prompt.
type PromptSource struct {
	File   string
	DocID  string
	Inline string
	Drive  Drive

	once   sync.Once
	prompt string
	err    error
}

// Resolve loads the prompt once per process.
func (p *PromptSource) Resolve(ctx context.Context) (string, error) {
	p.once.Do(func() {
		p.prompt, p.err = p.load(ctx)
	})
	return p.prompt, p.err
}

func (p *PromptSource) load(ctx context.Context) (string, error) {
	if path := strings.TrimSpace(p.File); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", services.Wrap(services.ErrConfiguration, stage.Summarized.String(), "load prompt", "read summary.prompt_file", err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			return text, nil
		}
	}
	if id := strings.TrimSpace(p.DocID); id != "" && p.Drive != nil {
		text, err := p.Drive.ExportText(ctx, id)
		if err != nil {
			return "", stageErr(stage.Summarized, "export prompt doc", err)
		}
		if text != "" {
			return text, nil
		}
	}
	if text := strings.TrimSpace(p.Inline); text != "" {
		return text, nil
	}
	return "", services.Wrap(services.ErrConfiguration, stage.Summarized.String(), "load prompt", "no summary prompt configured", nil)
}

// Summarizer produces a markdown summary of the parsed transcript.
type Summarizer struct {
	model        Completer
	modelName    string
	prompt       *PromptSource
	summariesDir string
	logger       *slog.Logger
}

// NewSummarizer builds a Summarizer writing <summariesDir>/<identity>.md.
func NewSummarizer(model Completer, modelName string, prompt *PromptSource, summariesDir string, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		model:        model,
		modelName:    modelName,
		prompt:       prompt,
		summariesDir: summariesDir,
		logger:       logging.NewComponentLogger(logger, "summarizer"),
	}
}

// Execute implements stage.Executor.
func (s *Summarizer) Execute(ctx context.Context, req stage.Request) stage.Result {
	text, _, err := readArtifact(req, stage.Summarized, stage.Parsed)
	if err != nil {
		return stage.Failed(err)
	}
	if strings.TrimSpace(text) == "" {
		return stage.Failed(services.Wrap(services.ErrValidation, stage.Summarized.String(), "load input", "parsed transcript is empty", nil))
	}
	prompt, err := s.prompt.Resolve(ctx)
	if err != nil {
		return stage.Failed(err)
	}
	summary, err := s.model.Complete(ctx, prompt, text)
	if err != nil {
		return stage.Failed(stageErr(stage.Summarized, "generate summary", err))
	}
	dest := filepath.Join(s.summariesDir, req.Identity+".md")
	if err := writeArtifact(stage.Summarized, dest, strings.TrimSpace(summary)+"\n"); err != nil {
		return stage.Failed(err)
	}
	s.logger.Debug("summary written", logging.String(logging.FieldItem, req.Identity), logging.String("dest", dest))
	return stage.Succeeded(dest, map[string]string{"summary_model": s.modelName})
}
