package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"scribe/internal/history"
	"scribe/internal/testsupport"
)

func TestRunLifecycleRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := store.BeginRun(ctx, "run-1", started, false); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.RecordStage(ctx, history.StageEvent{
		RunID: "run-1", Identity: "lecture_01", Stage: "transcribed",
		Outcome: history.OutcomeCompleted, Artifact: "/t/lecture_01.txt", Duration: 1500 * time.Millisecond,
	}); err != nil {
		t.Fatalf("RecordStage: %v", err)
	}
	if err := store.RecordStage(ctx, history.StageEvent{
		RunID: "run-1", Identity: "lecture_02", Stage: "transcribed",
		Outcome: history.OutcomeFailed, Error: "quota exceeded",
	}); err != nil {
		t.Fatalf("RecordStage: %v", err)
	}
	if err := store.FinishRun(ctx, history.Run{
		ID: "run-1", FinishedAt: started.Add(time.Minute), Status: history.StatusCompleted,
		Items: 2, Processed: 1, Failed: 1,
	}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Items != 2 || run.Processed != 1 || run.Failed != 1 || run.Status != history.StatusCompleted {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Duration() != time.Minute {
		t.Fatalf("expected 1m duration, got %s", run.Duration())
	}

	events, err := store.RunEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunEvents: %v", err)
	}
	if len(events) != 2 || events[0].Duration != 1500*time.Millisecond || events[1].Error != "quota exceeded" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestRecentRunsNewestFirstWithLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.BeginRun(ctx, id, base.Add(time.Duration(i)*time.Hour), i == 2); err != nil {
			t.Fatalf("BeginRun %s: %v", id, err)
		}
	}
	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected order %+v", runs)
	}
	if !runs[0].DryRun || runs[0].Status != history.StatusRunning || !runs[0].FinishedAt.IsZero() {
		t.Fatalf("unexpected unfinished run %+v", runs[0])
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.BeginRun(context.Background(), "keep", time.Now(), false); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	_ = store.Close()

	reopened, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.RecentRuns(context.Background(), 5)
	if err != nil || len(runs) != 1 || runs[0].ID != "keep" {
		t.Fatalf("expected persisted run, got %+v %v", runs, err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := history.Open(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 9"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := history.Open(path); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
