package stage

import (
	"fmt"
	"strings"

	"scribe/internal/services"
)

// Stage is one step of the pipeline. Stages are totally ordered by their
// declaration order and persisted by name.
type Stage int

const (
	AudioExtracted Stage = iota
	AudioDownloaded
	Transcribed
	Parsed
	Summarized
	PublishedToNotes
	SyncedToRemoteStorage
	Completed
)

var names = [...]string{
	AudioExtracted:        "audio_extracted",
	AudioDownloaded:       "audio_downloaded",
	Transcribed:           "transcribed",
	Parsed:                "parsed",
	Summarized:            "summarized",
	PublishedToNotes:      "published_to_notes",
	SyncedToRemoteStorage: "synced_to_remote",
	Completed:             "completed",
}

// legacyNames maps names written by older state documents.
var legacyNames = map[string]Stage{
	"hackmd_uploaded": PublishedToNotes,
	"drive_uploaded":  SyncedToRemoteStorage,
}

// All returns every stage in declaration order.
func All() []Stage {
	out := make([]Stage, len(names))
	for i := range names {
		out[i] = Stage(i)
	}
	return out
}

// Valid reports whether s is a declared stage.
func (s Stage) Valid() bool {
	return s >= AudioExtracted && s <= Completed
}

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return names[s]
}

// Before reports whether s runs earlier than other.
func (s Stage) Before(other Stage) bool { return s < other }

// After reports whether s runs later than other.
func (s Stage) After(other Stage) bool { return s > other }

// IsEntry reports whether s is one of the alternative intake stages.
func (s Stage) IsEntry() bool {
	return s == AudioExtracted || s == AudioDownloaded
}

// ParseStage resolves a persisted name, accepting legacy aliases.
func ParseStage(name string) (Stage, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range names {
		if candidate == key {
			return Stage(i), nil
		}
	}
	if s, ok := legacyNames[key]; ok {
		return s, nil
	}
	return 0, services.Wrap(services.ErrValidation, "", "parse stage", fmt.Sprintf("unknown stage %q", name), nil)
}

// MarshalText implements encoding.TextMarshaler so stages serialize by name,
// both as JSON values and as map keys.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshal stage: invalid value %d", int(s))
	}
	return []byte(names[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
