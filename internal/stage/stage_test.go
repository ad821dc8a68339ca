package stage

import (
	"encoding/json"
	"errors"
	"testing"

	"scribe/internal/services"
)

func TestStageOrderAndNames(t *testing.T) {
	all := All()
	if len(all) != 8 {
		t.Fatalf("expected 8 stages, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if !all[i-1].Before(all[i]) || !all[i].After(all[i-1]) {
			t.Fatalf("stages out of order at %d", i)
		}
	}
	if Transcribed.String() != "transcribed" || SyncedToRemoteStorage.String() != "synced_to_remote" {
		t.Fatalf("unexpected names %q %q", Transcribed, SyncedToRemoteStorage)
	}
}

func TestParseStageAcceptsLegacyAliases(t *testing.T) {
	cases := map[string]Stage{
		"hackmd_uploaded":    PublishedToNotes,
		"drive_uploaded":     SyncedToRemoteStorage,
		"published_to_notes": PublishedToNotes,
		" Parsed ":           Parsed,
	}
	for name, want := range cases {
		got, err := ParseStage(name)
		if err != nil {
			t.Fatalf("ParseStage(%q) error: %v", name, err)
		}
		if got != want {
			t.Fatalf("ParseStage(%q) = %v, want %v", name, got, want)
		}
	}
	_, err := ParseStage("uploaded_to_mars")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStageJSONUsesNames(t *testing.T) {
	payload := map[Stage]string{Summarized: "/tmp/a.md"}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"summarized":"/tmp/a.md"}` {
		t.Fatalf("unexpected json %s", data)
	}
	var decoded map[Stage]string
	if err := json.Unmarshal([]byte(`{"drive_uploaded":"gdrive:abc"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded[SyncedToRemoteStorage] != "gdrive:abc" {
		t.Fatalf("legacy key not mapped: %v", decoded)
	}
}

func TestIntakeEntryStage(t *testing.T) {
	if s, ok := IntakeVideo.EntryStage(); !ok || s != AudioExtracted {
		t.Fatalf("video entry = %v %v", s, ok)
	}
	if s, ok := IntakeDrive.EntryStage(); !ok || s != AudioDownloaded {
		t.Fatalf("drive entry = %v %v", s, ok)
	}
	if _, ok := IntakeAudio.EntryStage(); ok {
		t.Fatal("local audio has no entry stage")
	}
	if k, err := ParseIntake(""); err != nil || k != IntakeAudio {
		t.Fatalf("empty intake should parse as audio, got %v %v", k, err)
	}
	if _, err := ParseIntake("fax"); err == nil {
		t.Fatal("expected unknown intake error")
	}
}

func TestRequestAudioPath(t *testing.T) {
	req := Request{SourcePath: "/videos/a.mp4", Intake: IntakeVideo, Artifacts: map[Stage]string{AudioExtracted: "/inbox/a.m4a"}}
	if req.AudioPath() != "/inbox/a.m4a" {
		t.Fatalf("unexpected audio path %q", req.AudioPath())
	}
	req = Request{SourcePath: "/audio/b.mp3", Intake: IntakeAudio}
	if req.AudioPath() != "/audio/b.mp3" {
		t.Fatalf("unexpected audio path %q", req.AudioPath())
	}
}

func TestResult(t *testing.T) {
	if !Succeeded("", nil).OK() {
		t.Fatal("success should be OK")
	}
	if Failed(errors.New("boom")).OK() {
		t.Fatal("failure should not be OK")
	}
}
