package executors

import (
	"context"
	"path/filepath"
	"strconv"

	"scribe/internal/stage"
	"scribe/internal/transcript"
)

// Parser normalizes the raw transcript into timestamped blocks.
type Parser struct {
	parsedDir string
}

// NewParser builds a Parser writing <parsedDir>/<identity>_parsed.txt.
func NewParser(parsedDir string) *Parser {
	return &Parser{parsedDir: parsedDir}
}

// Execute implements stage.Executor.
func (p *Parser) Execute(_ context.Context, req stage.Request) stage.Result {
	raw, _, err := readArtifact(req, stage.Parsed, stage.Transcribed)
	if err != nil {
		return stage.Failed(err)
	}
	parsed := transcript.Parse(raw)
	dest := filepath.Join(p.parsedDir, req.Identity+"_parsed.txt")
	if err := writeArtifact(stage.Parsed, dest, parsed+"\n"); err != nil {
		return stage.Failed(err)
	}
	return stage.Succeeded(dest, map[string]string{
		"transcript_blocks": strconv.Itoa(len(transcript.Blocks(parsed))),
	})
}
