package executors

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"scribe/internal/intake"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/stage"
	"scribe/internal/state"
)

// Downloader copies a Drive inbox file into the local inbox.
type Downloader struct {
	drive    Drive
	inboxDir string
	logger   *slog.Logger
}

// NewDownloader builds a Downloader.
func NewDownloader(drive Drive, inboxDir string, logger *slog.Logger) *Downloader {
	return &Downloader{drive: drive, inboxDir: inboxDir, logger: logging.NewComponentLogger(logger, "downloader")}
}

// Execute implements stage.Executor.
func (d *Downloader) Execute(ctx context.Context, req stage.Request) stage.Result {
	fileID := strings.TrimSpace(req.Metadata[intake.MetaDriveFileID])
	if fileID == "" && state.Scheme(req.SourcePath) == "gdrive" {
		fileID = state.RemoteID(req.SourcePath)
	}
	if fileID == "" {
		return stage.Failed(services.Wrap(services.ErrValidation, stage.AudioDownloaded.String(), "resolve drive file", "no drive file id recorded", nil))
	}
	name := filepath.Base(strings.TrimSpace(req.Metadata[intake.MetaSourceName]))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = req.Identity
	}
	dest := filepath.Join(d.inboxDir, name)
	if err := d.drive.Download(ctx, fileID, dest); err != nil {
		return stage.Failed(stageErr(stage.AudioDownloaded, "drive download", err))
	}
	d.logger.Debug("drive file downloaded", logging.String("file_id", fileID), logging.String("dest", dest))
	return stage.Succeeded(dest, nil)
}
