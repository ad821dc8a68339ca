package executors

import (
	"context"

	"scribe/internal/services/hackmd"
	"scribe/internal/stage"
	"scribe/internal/textutil"
)

// Metadata keys written by the publisher.
const (
	MetaNoteURL   = "note_url"
	MetaNoteTitle = "note_title"
)

// Publisher uploads the summary as a HackMD note. The artifact is
// "hackmd:<noteID>" so reconciliation can verify the note still exists.
type Publisher struct {
	notes NotePublisher
	tag   string
}

// NewPublisher builds a Publisher appending tag to every note.
func NewPublisher(notes NotePublisher, tag string) *Publisher {
	return &Publisher{notes: notes, tag: tag}
}

// Execute implements stage.Executor.
func (p *Publisher) Execute(ctx context.Context, req stage.Request) stage.Result {
	summary, _, err := readArtifact(req, stage.PublishedToNotes, stage.Summarized)
	if err != nil {
		return stage.Failed(err)
	}
	title := textutil.NoteTitle(req.Identity)
	note, err := p.notes.CreateNote(ctx, title, hackmd.FormatNote(title, summary, p.tag))
	if err != nil {
		return stage.Failed(stageErr(stage.PublishedToNotes, "create note", err))
	}
	return stage.Succeeded("hackmd:"+note.ID, map[string]string{
		MetaNoteURL:   note.URL,
		MetaNoteTitle: title,
	})
}

// HealthCheck verifies the API token when the client supports it.
func (p *Publisher) HealthCheck(ctx context.Context) stage.Health {
	checker, ok := p.notes.(interface{ HealthCheck(context.Context) error })
	if !ok {
		return stage.Ready("publisher")
	}
	if err := checker.HealthCheck(ctx); err != nil {
		return stage.NotReady("publisher", err)
	}
	return stage.Ready("publisher")
}
