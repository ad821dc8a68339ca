package intake

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/dhowden/tag"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/services/gdrive"
	"scribe/internal/stage"
	"scribe/internal/textutil"
)

// Kind is the intake kind recorded on a FileState.
type Kind = stage.Intake

// Metadata keys written for discovered items.
const (
	MetaSourceName  = "source_name"
	MetaDriveFileID = "drive_file_id"
	MetaTagTitle    = "tag_title"
	MetaTagArtist   = "tag_artist"
)

// Item is one discovered input.
type Item struct {
	Identity string
	// Path is a local path, or "gdrive:<fileID>" for Drive items.
	Path     string
	Kind     Kind
	Metadata map[string]string
}

// DriveLister lists the files of a Drive folder.
type DriveLister interface {
	ListFiles(ctx context.Context, folderID string) ([]gdrive.File, error)
}

// KnownKind reports the intake kind already recorded for an identity.
type KnownKind func(identity string) (Kind, bool)

// Scanner sweeps the configured sources.
type Scanner struct {
	cfg    *config.Config
	drive  DriveLister
	logger *slog.Logger
}

// NewScanner builds a Scanner. drive may be nil when Drive intake is disabled.
func NewScanner(cfg *config.Config, drive DriveLister, logger *slog.Logger) *Scanner {
	return &Scanner{cfg: cfg, drive: drive, logger: logging.NewComponentLogger(logger, "intake")}
}

// Sweep lists every enabled source and returns one item per identity, sorted
// by identity. A failing source is logged and skipped.
func (s *Scanner) Sweep(ctx context.Context, known KnownKind) []Item {
	var found []Item
	if s.cfg.Intake.ProcessVideos {
		found = append(found, s.scanLocal(s.cfg.Intake.VideoDir, stage.IntakeVideo, s.cfg.Intake.VideoExtensions)...)
	}
	if s.cfg.Intake.ProcessDrive {
		found = append(found, s.scanDrive(ctx)...)
	}
	if s.cfg.Intake.ProcessLocalAudio {
		found = append(found, s.scanLocal(s.cfg.Intake.AudioDir, stage.IntakeAudio, s.cfg.Intake.AudioExtensions)...)
	}
	items := Dedupe(found, known)
	s.logger.Info("intake sweep complete",
		logging.Int("discovered", len(found)),
		logging.Int("items", len(items)),
	)
	return items
}

// Dedupe keeps one item per identity. The kind already recorded for the
// identity wins; otherwise video beats drive beats local audio.
func Dedupe(items []Item, known KnownKind) []Item {
	best := make(map[string]Item, len(items))
	rank := func(it Item) int {
		if known != nil {
			if kind, ok := known(it.Identity); ok && kind == it.Kind {
				return -1
			}
		}
		return it.Kind.Priority()
	}
	for _, it := range items {
		current, ok := best[it.Identity]
		if !ok || rank(it) < rank(current) {
			best[it.Identity] = it
		}
	}
	out := make([]Item, 0, len(best))
	for _, it := range best {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

func (s *Scanner) scanLocal(dir string, kind Kind, extensions []string) []Item {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.WarnWithContext(s.logger, "intake source unavailable",
			"intake_scan_failed",
			logging.String("source", string(kind)),
			logging.String("dir", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the intake directory exists and is readable"),
			logging.String(logging.FieldImpact, "items from this source are skipped this run"),
		)
		return nil
	}
	var items []Item
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !matchesExtension(name, extensions) {
			continue
		}
		path := filepath.Join(dir, name)
		meta := map[string]string{MetaSourceName: name}
		if kind == stage.IntakeAudio {
			readTags(path, meta)
		}
		items = append(items, Item{
			Identity: textutil.Identity(name),
			Path:     path,
			Kind:     kind,
			Metadata: meta,
		})
	}
	return items
}

func (s *Scanner) scanDrive(ctx context.Context) []Item {
	if s.drive == nil {
		return nil
	}
	files, err := s.drive.ListFiles(ctx, s.cfg.Drive.InboxFolderID)
	if err != nil {
		logging.WarnWithContext(s.logger, "drive intake unavailable",
			"intake_scan_failed",
			logging.String("source", string(stage.IntakeDrive)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check drive credentials and drive.inbox_folder_id"),
			logging.String(logging.FieldImpact, "drive items are skipped this run"),
		)
		return nil
	}
	var items []Item
	for _, f := range files {
		if !matchesExtension(f.Name, s.cfg.Intake.AudioExtensions) {
			continue
		}
		items = append(items, Item{
			Identity: textutil.Identity(f.Name),
			Path:     "gdrive:" + f.ID,
			Kind:     stage.IntakeDrive,
			Metadata: map[string]string{MetaSourceName: f.Name, MetaDriveFileID: f.ID},
		})
	}
	return items
}

func matchesExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext != "" && slices.Contains(extensions, ext)
}

// readTags copies title and artist tags into meta. Files without readable
// tags are left alone.
func readTags(path string, meta map[string]string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	m, err := tag.ReadFrom(f)
	if err != nil {
		return
	}
	if title := strings.TrimSpace(m.Title()); title != "" {
		meta[MetaTagTitle] = title
	}
	if artist := strings.TrimSpace(m.Artist()); artist != "" {
		meta[MetaTagArtist] = artist
	}
}

// String renders an item for logs.
func (it Item) String() string {
	return fmt.Sprintf("%s (%s)", it.Identity, it.Kind)
}
