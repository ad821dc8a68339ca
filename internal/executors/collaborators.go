package executors

import (
	"context"

	"scribe/internal/services/ffmpeg"
	"scribe/internal/services/gdrive"
	"scribe/internal/services/hackmd"
)

// AudioTool extracts and chunks audio.
type AudioTool interface {
	ExtractAudio(ctx context.Context, source, dest string, opts ffmpeg.ExtractOptions) error
	Split(ctx context.Context, source, dir string, opts ffmpeg.SplitOptions) ([]string, error)
}

// SpeechToText transcribes one audio clip.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, prompt string) (string, error)
}

// Completer runs a system + user prompt through a text model.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// NotePublisher creates markdown notes.
type NotePublisher interface {
	CreateNote(ctx context.Context, title, content string) (hackmd.Note, error)
}

// Drive is the Google Drive surface used by the downloader, syncer and
// summary prompt loader.
type Drive interface {
	ListFiles(ctx context.Context, folderID string) ([]gdrive.File, error)
	Download(ctx context.Context, fileID, dest string) error
	Upload(ctx context.Context, localPath, parentID string) (string, error)
	EnsureFolder(ctx context.Context, parentID, name string) (string, error)
	Move(ctx context.Context, fileID, fromFolderID, toFolderID string) error
	ExportText(ctx context.Context, docID string) (string, error)
}
