package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/fileutil"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/stage"
)

// DocumentVersion is written to every saved state document.
const DocumentVersion = 1

// ErrLocked is returned by Lock when another process holds the state lock.
var ErrLocked = errors.New("another scribe run holds the state lock")

// ErrReadOnly is returned by mutating calls on a store opened with OpenReadOnly.
var ErrReadOnly = errors.New("state store opened read-only")

// ErrorEntry is one recorded stage failure.
type ErrorEntry struct {
	Identity  string    `json:"identity"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error"`
	Context   string    `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ItemSummary is the per-item view returned by Summary.
type ItemSummary struct {
	Identity        string                 `json:"identity"`
	Intake          stage.Intake           `json:"intake"`
	StagesCompleted []stage.Stage          `json:"stages_completed"`
	LastUpdated     time.Time              `json:"last_updated"`
	ArtifactsExist  map[stage.Stage]bool   `json:"artifacts_exist"`
	Artifacts       map[stage.Stage]string `json:"artifacts"`
}

type document struct {
	Version     int                   `json:"version"`
	CreatedAt   time.Time             `json:"created_at"`
	LastUpdated time.Time             `json:"last_updated"`
	Files       map[string]*FileState `json:"files"`
	Errors      []ErrorEntry          `json:"errors"`
}

// Store persists FileState records in a single JSON document. All mutations
// run under one mutex and are saved before the call returns.
type Store struct {
	path     string
	logger   *slog.Logger
	checker  ArtifactChecker
	readOnly bool
	lock     *flock.Flock

	mu  sync.RWMutex
	doc document
}

// Option customizes a Store.
type Option func(*Store)

// WithChecker overrides the artifact checker (default: NewSchemeChecker()).
func WithChecker(checker ArtifactChecker) Option {
	return func(s *Store) {
		if checker != nil {
			s.checker = checker
		}
	}
}

// Open ensures the state directory exists and loads the document at path.
// A missing document starts a fresh store; an unreadable one is set aside and
// replaced by an empty store.
func Open(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "open state", "state file path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "open state", "create state directory", err)
	}
	s := newStore(path, logger, false, opts...)
	s.load()
	return s, nil
}

// OpenReadOnly loads the document without creating directories. Mutations
// return ErrReadOnly and nothing is ever written.
func OpenReadOnly(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "open state", "state file path is empty", nil)
	}
	s := newStore(path, logger, true, opts...)
	s.load()
	return s, nil
}

func newStore(path string, logger *slog.Logger, readOnly bool, opts ...Option) *Store {
	s := &Store{
		path:     path,
		logger:   logging.NewComponentLogger(logger, "state"),
		checker:  NewSchemeChecker(),
		readOnly: readOnly,
		lock:     flock.New(path + ".lock"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.doc = freshDocument()
	return s
}

func freshDocument() document {
	now := time.Now().UTC()
	return document{
		Version:     DocumentVersion,
		CreatedAt:   now,
		LastUpdated: now,
		Files:       make(map[string]*FileState),
	}
}

// Path returns the state document location.
func (s *Store) Path() string { return s.path }

// Lock takes the cross-process single writer lock. The returned function
// releases it.
func (s *Store) Lock() (func() error, error) {
	ok, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire state lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, s.lock.Path())
	}
	return s.lock.Unlock, nil
}

// load reads the document from disk. It never fails: problems are logged and
// the store starts empty.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("no state document; starting fresh", logging.String("path", s.path))
			return
		}
		s.warnLoadFailed(err, "check permissions on the state file")
		return
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		s.warnLoadFailed(errors.New("state document is empty"), "the previous run was likely interrupted during its first save")
		return
	}

	doc, skipped, err := decodeDocument(data)
	if err != nil {
		s.preserveCorrupt()
		s.warnLoadFailed(err, "inspect the preserved .corrupt file; scribe will rebuild state from artifacts")
		return
	}
	for identity, cause := range skipped {
		logging.WarnWithContext(s.logger, "state record unreadable; item will be reprocessed", "state_record_invalid",
			logging.String(logging.FieldItem, identity),
			logging.Error(cause),
			logging.String(logging.FieldErrorHint, "the record references an unknown stage or intake kind"),
			logging.String(logging.FieldImpact, "item restarts from its entry stage"),
		)
	}
	s.doc = doc
	s.logger.Debug("loaded state document",
		logging.String("path", s.path),
		logging.Int("item_count", len(doc.Files)),
		logging.Int("error_count", len(doc.Errors)))
}

func (s *Store) warnLoadFailed(err error, hint string) {
	logging.WarnWithContext(s.logger, "state document unreadable; starting with empty state", "state_load_failed",
		logging.String("path", s.path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "previously completed stages will be redone where artifacts are gone"),
	)
}

func (s *Store) preserveCorrupt() {
	if s.readOnly {
		return
	}
	target := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(s.path, target); err != nil {
		s.logger.Debug("could not preserve corrupt state document", logging.Error(err))
		return
	}
	s.logger.Info("preserved corrupt state document",
		logging.String("path", target),
		logging.String(logging.FieldEventType, "state_corrupt_preserved"))
}

// decodeDocument accepts the versioned document and the older flat
// identity -> record map. Records that fail schema checks are skipped and
// reported; a document that is not JSON at all is an error.
func decodeDocument(data []byte) (document, map[string]error, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return document{}, nil, fmt.Errorf("parse state document: %w", err)
	}

	doc := freshDocument()
	rawFiles := top
	if _, ok := top["files"]; ok {
		var envelope struct {
			Version     int                        `json:"version"`
			CreatedAt   string                     `json:"created_at"`
			LastUpdated string                     `json:"last_updated"`
			Files       map[string]json.RawMessage `json:"files"`
			Errors      []json.RawMessage          `json:"errors"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return document{}, nil, fmt.Errorf("parse state document: %w", err)
		}
		if envelope.Version > DocumentVersion {
			return document{}, nil, fmt.Errorf("state document version %d is newer than supported version %d", envelope.Version, DocumentVersion)
		}
		if ts, err := parseTimestamp(envelope.CreatedAt); err == nil {
			doc.CreatedAt = ts
		}
		if ts, err := parseTimestamp(envelope.LastUpdated); err == nil {
			doc.LastUpdated = ts
		}
		for _, raw := range envelope.Errors {
			var entry ErrorEntry
			if err := json.Unmarshal(raw, &entry); err == nil {
				doc.Errors = append(doc.Errors, entry)
			}
		}
		rawFiles = envelope.Files
	}

	skipped := make(map[string]error)
	for key, raw := range rawFiles {
		var rec FileState
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped[key] = err
			continue
		}
		if strings.TrimSpace(rec.Identity) == "" {
			rec.Identity = key
		}
		rec.ensureMaps()
		doc.Files[rec.Identity] = &rec
	}
	return doc, skipped, nil
}

// save writes the document atomically: temp file, fsync, rename, directory
// fsync. Failures are logged, never returned; the in-memory state stays
// authoritative for the rest of the run.
func (s *Store) save() {
	if s.readOnly {
		return
	}
	if err := s.writeDocument(); err != nil {
		logging.ErrorWithContext(s.logger, "state save failed", "state_save_failed",
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions in the state directory"),
		)
	}
}

func (s *Store) writeDocument() error {
	s.doc.Version = DocumentVersion
	s.doc.LastUpdated = time.Now().UTC()
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return fileutil.WriteFileAtomic(s.path, data, 0o644)
}

// GetOrCreate returns a copy of the record for identity, creating it when
// absent. An existing record keeps its intake kind; a missing source path is
// filled in.
func (s *Store) GetOrCreate(identity, sourcePath string, intake stage.Intake) (*FileState, error) {
	if s.readOnly {
		return nil, ErrReadOnly
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, services.Wrap(services.ErrValidation, "", "get or create", "identity is empty", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.doc.Files[identity]
	changed := false
	if !ok {
		rec = NewFileState(identity, sourcePath, intake)
		s.doc.Files[identity] = rec
		changed = true
	} else if rec.SourcePath == "" && sourcePath != "" {
		rec.SourcePath = sourcePath
		changed = true
	}
	if changed {
		s.save()
	}
	return rec.Clone(), nil
}

// MarkStageComplete records a finished stage plus any metadata it produced.
func (s *Store) MarkStageComplete(identity string, st stage.Stage, artifact string, metadata map[string]string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.doc.Files[identity]
	if !ok {
		rec = NewFileState(identity, "", stage.IntakeAudio)
		s.doc.Files[identity] = rec
	}
	rec.MarkStageComplete(st, artifact)
	for key, value := range metadata {
		rec.Metadata[key] = value
	}
	s.save()
	return nil
}

// RecordError appends a stage failure to the error log.
func (s *Store) RecordError(identity string, st *stage.Stage, message, detail string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	entry := ErrorEntry{
		Identity:  identity,
		Error:     message,
		Context:   detail,
		Timestamp: time.Now().UTC(),
	}
	if st != nil {
		entry.Stage = st.String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Errors = append(s.doc.Errors, entry)
	s.save()
	return nil
}

// SetMetadata stores one metadata value on an existing record.
func (s *Store) SetMetadata(identity, key, value string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.doc.Files[identity]
	if !ok {
		return services.Wrap(services.ErrNotFound, "", "set metadata", fmt.Sprintf("no state for %q", identity), nil)
	}
	rec.Metadata[key] = value
	rec.LastUpdated = time.Now().UTC()
	s.save()
	return nil
}

// CleanMissingArtifacts drops completion for every stage whose recorded
// artifact no longer exists and returns how many stages were reset. Checker
// errors leave the stage alone.
func (s *Store) CleanMissingArtifacts(ctx context.Context) int {
	if s.readOnly {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, identity := range s.sortedIdentities() {
		rec := s.doc.Files[identity]
		for _, st := range sortedArtifactStages(rec) {
			loc := rec.Artifacts[st]
			exists, err := s.checker.Exists(ctx, loc)
			if err != nil {
				s.logger.Debug("artifact check failed; keeping stage",
					logging.String(logging.FieldItem, identity),
					logging.String(logging.FieldStage, st.String()),
					logging.Error(err))
				continue
			}
			if exists {
				continue
			}
			s.logger.Debug("recorded artifact missing; stage will be redone",
				logging.String(logging.FieldItem, identity),
				logging.String(logging.FieldStage, st.String()),
				logging.String("artifact", loc),
				logging.String(logging.FieldEventType, "reconcile_mismatch"))
			rec.ClearStage(st)
			removed++
		}
	}
	if removed > 0 {
		s.save()
	}
	return removed
}

// Clear drops every record and error and starts a new document.
func (s *Store) Clear() error {
	if s.readOnly {
		return ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = freshDocument()
	s.save()
	return nil
}

// Get returns a copy of the record for identity.
func (s *Store) Get(identity string) (*FileState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.doc.Files[identity]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// List returns copies of all records sorted by identity.
func (s *Store) List() []*FileState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*FileState, 0, len(s.doc.Files))
	for _, identity := range s.sortedIdentities() {
		out = append(out, s.doc.Files[identity].Clone())
	}
	return out
}

// Errors returns a copy of the error log, oldest first.
func (s *Store) Errors() []ErrorEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.doc.Errors)
}

// CreatedAt reports when the current document was started.
func (s *Store) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.CreatedAt
}

// Checker exposes the artifact checker used by the store.
func (s *Store) Checker() ArtifactChecker { return s.checker }

// Summary reports per-item completion and whether each recorded artifact
// still exists.
func (s *Store) Summary(ctx context.Context) []ItemSummary {
	items := s.List()
	out := make([]ItemSummary, 0, len(items))
	for _, rec := range items {
		summary := ItemSummary{
			Identity:        rec.Identity,
			Intake:          rec.Intake,
			StagesCompleted: rec.Stages(),
			LastUpdated:     rec.LastUpdated,
			ArtifactsExist:  make(map[stage.Stage]bool, len(rec.Artifacts)),
			Artifacts:       rec.Artifacts,
		}
		for st, loc := range rec.Artifacts {
			exists, err := s.checker.Exists(ctx, loc)
			summary.ArtifactsExist[st] = exists && err == nil
		}
		out = append(out, summary)
	}
	return out
}

func (s *Store) sortedIdentities() []string {
	ids := make([]string, 0, len(s.doc.Files))
	for id := range s.doc.Files {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func sortedArtifactStages(rec *FileState) []stage.Stage {
	out := make([]stage.Stage, 0, len(rec.Artifacts))
	for st := range rec.Artifacts {
		out = append(out, st)
	}
	slices.Sort(out)
	return out
}
