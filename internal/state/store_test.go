package state

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/stage"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "pipeline_state.json")
	artifact := filepath.Join(dir, "a.txt")
	writeFile(t, artifact, "transcript")

	store := openStore(t, path)
	if _, err := store.GetOrCreate("a", "/audio/a.mp3", stage.IntakeAudio); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := store.MarkStageComplete("a", stage.Transcribed, artifact, map[string]string{"chunks": "3"}); err != nil {
		t.Fatalf("MarkStageComplete: %v", err)
	}
	st := stage.Transcribed
	if err := store.RecordError("b", &st, "quota exceeded", "chunk 2"); err != nil {
		t.Fatalf("RecordError: %v", err)
	}
	created := store.CreatedAt()

	reopened := openStore(t, path)
	fs, ok := reopened.Get("a")
	if !ok {
		t.Fatal("expected record after reopen")
	}
	if !fs.IsStageComplete(stage.Transcribed) || fs.Metadata["chunks"] != "3" || fs.SourcePath != "/audio/a.mp3" {
		t.Fatalf("unexpected record %+v", fs)
	}
	errs := reopened.Errors()
	if len(errs) != 1 || errs[0].Stage != "transcribed" || errs[0].Context != "chunk 2" {
		t.Fatalf("unexpected errors %+v", errs)
	}
	if !reopened.CreatedAt().Equal(created) {
		t.Fatalf("created_at changed across reopen: %v vs %v", reopened.CreatedAt(), created)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file should not remain after save, stat err=%v", err)
	}
}

func TestStoreDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := openStore(t, path)
	if err := store.MarkStageComplete("a", stage.Parsed, "", nil); err != nil {
		t.Fatalf("MarkStageComplete: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"version", "created_at", "last_updated", "files", "errors"} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("document missing %q: %s", key, data)
		}
	}
}

func TestStoreRecoversFromCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	writeFile(t, path, "{not json")

	store := openStore(t, path)
	if len(store.List()) != 0 {
		t.Fatal("expected empty store after corruption")
	}
	matches, _ := filepath.Glob(path + ".corrupt-*")
	if len(matches) != 1 {
		t.Fatalf("expected corrupt document to be preserved, got %v", matches)
	}
	if err := store.MarkStageComplete("a", stage.Transcribed, "", nil); err != nil {
		t.Fatalf("store should remain usable: %v", err)
	}
}

func TestStoreRecoversFromEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	writeFile(t, path, "")
	store := openStore(t, path)
	if len(store.List()) != 0 {
		t.Fatal("expected empty store")
	}
}

func TestStoreSkipsRecordsWithUnknownStages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	writeFile(t, path, `{
		"version": 1,
		"created_at": "2024-01-01T00:00:00Z",
		"last_updated": "2024-01-01T00:00:00Z",
		"files": {
			"good": {"filename": "good", "stages_completed": ["transcribed"], "artifacts": {}, "metadata": {}, "last_updated": "2024-01-01T00:00:00Z"},
			"bad": {"filename": "bad", "stages_completed": ["warp_drive"], "artifacts": {}, "metadata": {}, "last_updated": "2024-01-01T00:00:00Z"}
		},
		"errors": []
	}`)
	store := openStore(t, path)
	if _, ok := store.Get("good"); !ok {
		t.Fatal("valid record should load")
	}
	if _, ok := store.Get("bad"); ok {
		t.Fatal("record with unknown stage should be skipped")
	}
}

func TestStoreLoadsLegacyFlatDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	writeFile(t, path, `{
		"meeting": {"filename": "meeting", "audio_path": "/in/meeting.m4a", "stages_completed": ["audio_downloaded", "transcribed", "drive_uploaded"], "artifacts": {}, "metadata": {}, "last_updated": "2024-03-04T05:06:07.000001"}
	}`)
	store := openStore(t, path)
	fs, ok := store.Get("meeting")
	if !ok {
		t.Fatal("legacy record missing")
	}
	if !fs.IsStageComplete(stage.SyncedToRemoteStorage) || !fs.IsStageComplete(stage.AudioDownloaded) {
		t.Fatalf("unexpected stages %v", fs.Stages())
	}
}

func TestCleanMissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	present := filepath.Join(dir, "present.txt")
	missing := filepath.Join(dir, "missing.txt")
	writeFile(t, present, "x")

	store := openStore(t, path)
	_ = store.MarkStageComplete("a", stage.Transcribed, present, nil)
	_ = store.MarkStageComplete("a", stage.Parsed, missing, nil)
	_ = store.MarkStageComplete("a", stage.PublishedToNotes, "hackmd:note123", nil)
	_ = store.MarkStageComplete("a", stage.Completed, "", nil)

	if removed := store.CleanMissingArtifacts(context.Background()); removed != 1 {
		t.Fatalf("expected one stage reset, got %d", removed)
	}
	fs, _ := store.Get("a")
	if fs.IsStageComplete(stage.Parsed) {
		t.Fatal("stage with missing artifact should be reset")
	}
	if !fs.IsStageComplete(stage.Transcribed) || !fs.IsStageComplete(stage.PublishedToNotes) || !fs.IsStageComplete(stage.Completed) {
		t.Fatalf("unexpected stages after clean %v", fs.Stages())
	}
}

func TestCleanMissingArtifactsUsesRegisteredRemoteChecker(t *testing.T) {
	checker := NewSchemeChecker()
	checker.Register("hackmd", CheckerFunc(func(_ context.Context, loc string) (bool, error) {
		return RemoteID(loc) != "deleted", nil
	}))
	checker.Register("gdrive", CheckerFunc(func(context.Context, string) (bool, error) {
		return false, errors.New("network down")
	}))
	store, err := Open(filepath.Join(t.TempDir(), "state.json"), nil, WithChecker(checker))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.MarkStageComplete("a", stage.PublishedToNotes, "hackmd:deleted", nil)
	_ = store.MarkStageComplete("a", stage.SyncedToRemoteStorage, "gdrive:folder", nil)

	if removed := store.CleanMissingArtifacts(context.Background()); removed != 1 {
		t.Fatalf("expected one stage reset, got %d", removed)
	}
	fs, _ := store.Get("a")
	if fs.IsStageComplete(stage.PublishedToNotes) {
		t.Fatal("deleted note should be reset")
	}
	if !fs.IsStageComplete(stage.SyncedToRemoteStorage) {
		t.Fatal("checker errors should keep the stage")
	}
}

func TestClearStartsNewDocument(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "state.json"))
	_ = store.MarkStageComplete("a", stage.Transcribed, "", nil)
	_ = store.RecordError("a", nil, "boom", "")
	before := store.CreatedAt()
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(store.List()) != 0 || len(store.Errors()) != 0 {
		t.Fatal("expected empty store after Clear")
	}
	if store.CreatedAt().Before(before) {
		t.Fatal("Clear should stamp a new created_at")
	}
}

func TestReadOnlyStoreNeverWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "state.json")
	store, err := OpenReadOnly(path, nil)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	if err := store.MarkStageComplete("a", stage.Transcribed, "", nil); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Fatalf("read-only open must not create directories, stat err=%v", err)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	writeFile(t, corrupt, "garbage")
	if _, err := OpenReadOnly(corrupt, nil); err != nil {
		t.Fatalf("OpenReadOnly corrupt: %v", err)
	}
	if _, err := os.Stat(corrupt); err != nil {
		t.Fatalf("read-only open must leave corrupt file in place: %v", err)
	}
}

func TestLockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	first := openStore(t, path)
	second := openStore(t, path)

	release, err := first.Lock()
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := second.Lock(); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	release2, err := second.Lock()
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	_ = release2()
}

func TestSummaryReportsArtifactExistence(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "a.txt")
	writeFile(t, present, "x")
	store := openStore(t, filepath.Join(dir, "state.json"))
	_ = store.MarkStageComplete("a", stage.Transcribed, present, nil)
	_ = store.MarkStageComplete("a", stage.Parsed, filepath.Join(dir, "gone.txt"), nil)

	summary := store.Summary(context.Background())
	if len(summary) != 1 {
		t.Fatalf("expected one item, got %d", len(summary))
	}
	if !summary[0].ArtifactsExist[stage.Transcribed] || summary[0].ArtifactsExist[stage.Parsed] {
		t.Fatalf("unexpected artifact existence %v", summary[0].ArtifactsExist)
	}
}

func TestScheme(t *testing.T) {
	cases := map[string]string{
		"hackmd:abc":           "hackmd",
		"https://hackmd.io/x":  "https",
		"gdrive:folder":        "gdrive",
		"/var/data/a.txt":      "",
		"C:\\data\\a.txt":      "",
		"relative/path:weird":  "",
	}
	for input, want := range cases {
		if got := Scheme(input); got != want {
			t.Fatalf("Scheme(%q) = %q, want %q", input, got, want)
		}
	}
	if !strings.EqualFold(RemoteID("hackmd:abc"), "abc") {
		t.Fatalf("unexpected remote id %q", RemoteID("hackmd:abc"))
	}
}
