package executors

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"scribe/internal/intake"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/stage"
)

// MetaDriveFolderID records the per-item output folder.
const MetaDriveFolderID = "drive_folder_id"

// SyncerConfig holds the Drive folder layout.
type SyncerConfig struct {
	OutputFolderID      string
	InboxFolderID       string
	TranscribedFolderID string
	UploadAudio         bool
}

// Syncer uploads an item's outputs into a per-identity Drive folder and, for
// Drive-sourced items, moves the source out of the inbox folder.
type Syncer struct {
	drive  Drive
	cfg    SyncerConfig
	logger *slog.Logger
}

// NewSyncer builds a Syncer.
func NewSyncer(drive Drive, cfg SyncerConfig, logger *slog.Logger) *Syncer {
	return &Syncer{drive: drive, cfg: cfg, logger: logging.NewComponentLogger(logger, "syncer")}
}

// Execute implements stage.Executor.
func (s *Syncer) Execute(ctx context.Context, req stage.Request) stage.Result {
	uploads, err := s.collect(req)
	if err != nil {
		return stage.Failed(err)
	}
	folderID, err := s.drive.EnsureFolder(ctx, s.cfg.OutputFolderID, req.Identity)
	if err != nil {
		return stage.Failed(stageErr(stage.SyncedToRemoteStorage, "ensure folder", err))
	}
	existing, err := s.folderNames(ctx, folderID)
	if err != nil {
		return stage.Failed(err)
	}

	uploaded := 0
	for _, path := range uploads {
		name := filepath.Base(path)
		if _, ok := existing[name]; ok {
			continue
		}
		if _, err := s.drive.Upload(ctx, path, folderID); err != nil {
			return stage.Failed(stageErr(stage.SyncedToRemoteStorage, "upload "+name, err))
		}
		uploaded++
	}

	present, err := s.folderNames(ctx, folderID)
	if err != nil {
		return stage.Failed(err)
	}
	var missing []string
	for _, path := range uploads {
		if _, ok := present[filepath.Base(path)]; !ok {
			missing = append(missing, filepath.Base(path))
		}
	}
	if len(missing) > 0 {
		return stage.Failed(services.Wrap(services.ErrTransient, stage.SyncedToRemoteStorage.String(), "verify upload",
			fmt.Sprintf("missing after upload: %s", strings.Join(missing, ", ")), nil))
	}

	if err := s.archiveSource(ctx, req); err != nil {
		return stage.Failed(err)
	}
	s.logger.Info("outputs synced",
		logging.String(logging.FieldItem, req.Identity),
		logging.String("folder_id", folderID),
		logging.Int("uploaded", uploaded),
		logging.Int("already_present", len(uploads)-uploaded),
	)
	return stage.Succeeded("gdrive:"+folderID, map[string]string{MetaDriveFolderID: folderID})
}

func (s *Syncer) collect(req stage.Request) ([]string, error) {
	var uploads []string
	if s.cfg.UploadAudio {
		if path, err := requireAudio(req, stage.SyncedToRemoteStorage); err == nil {
			uploads = append(uploads, path)
		}
	}
	for _, st := range []stage.Stage{stage.Transcribed, stage.Parsed, stage.Summarized} {
		path, ok := req.Artifact(st)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, stage.SyncedToRemoteStorage.String(), "collect outputs",
				fmt.Sprintf("no %s artifact recorded", st), nil)
		}
		if _, err := requireFile(path, stage.SyncedToRemoteStorage); err != nil {
			return nil, err
		}
		uploads = append(uploads, path)
	}
	return uploads, nil
}

func (s *Syncer) folderNames(ctx context.Context, folderID string) (map[string]struct{}, error) {
	files, err := s.drive.ListFiles(ctx, folderID)
	if err != nil {
		return nil, stageErr(stage.SyncedToRemoteStorage, "list folder", err)
	}
	names := make(map[string]struct{}, len(files))
	for _, f := range files {
		names[f.Name] = struct{}{}
	}
	return names, nil
}

// archiveSource moves a Drive inbox file into the transcribed folder so the
// next sweep no longer lists it.
func (s *Syncer) archiveSource(ctx context.Context, req stage.Request) error {
	if req.Intake != stage.IntakeDrive || s.cfg.TranscribedFolderID == "" || s.cfg.InboxFolderID == "" {
		return nil
	}
	fileID := strings.TrimSpace(req.Metadata[intake.MetaDriveFileID])
	if fileID == "" {
		return nil
	}
	if err := s.drive.Move(ctx, fileID, s.cfg.InboxFolderID, s.cfg.TranscribedFolderID); err != nil {
		if services.Kind(err) == services.ErrorKindNotFound {
			// Already moved by an earlier attempt.
			return nil
		}
		return stageErr(stage.SyncedToRemoteStorage, "move source", err)
	}
	return nil
}
