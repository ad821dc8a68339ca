package state

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"scribe/internal/stage"
)

// legacyTimeLayout matches timestamps written without a zone offset.
const legacyTimeLayout = "2006-01-02T15:04:05.999999999"

// FileState tracks one item through the pipeline.
//
// A stage with an artifact is always in StagesCompleted; a completed stage may
// have no artifact. Callers decide artifact existence through an
// ArtifactChecker, never by trusting the record alone.
type FileState struct {
	Identity        string
	SourcePath      string
	Intake          stage.Intake
	StagesCompleted map[stage.Stage]struct{}
	Artifacts       map[stage.Stage]string
	Metadata        map[string]string
	LastUpdated     time.Time
}

// NewFileState returns an empty record for identity.
func NewFileState(identity, sourcePath string, intake stage.Intake) *FileState {
	return &FileState{
		Identity:        identity,
		SourcePath:      sourcePath,
		Intake:          intake,
		StagesCompleted: make(map[stage.Stage]struct{}),
		Artifacts:       make(map[stage.Stage]string),
		Metadata:        make(map[string]string),
		LastUpdated:     time.Now().UTC(),
	}
}

// MarkStageComplete records s as done. A non-empty artifact replaces any
// earlier one; an empty artifact leaves the recorded location untouched.
func (f *FileState) MarkStageComplete(s stage.Stage, artifact string) {
	f.ensureMaps()
	f.StagesCompleted[s] = struct{}{}
	if artifact = strings.TrimSpace(artifact); artifact != "" {
		f.Artifacts[s] = artifact
	}
	f.LastUpdated = time.Now().UTC()
}

// IsStageComplete reports membership in the completed set only.
func (f *FileState) IsStageComplete(s stage.Stage) bool {
	_, ok := f.StagesCompleted[s]
	return ok
}

// Artifact returns the recorded location for s.
func (f *FileState) Artifact(s stage.Stage) (string, bool) {
	loc, ok := f.Artifacts[s]
	return loc, ok && loc != ""
}

// ClearStage forgets both the completion and the artifact of s.
func (f *FileState) ClearStage(s stage.Stage) {
	delete(f.StagesCompleted, s)
	delete(f.Artifacts, s)
	f.LastUpdated = time.Now().UTC()
}

// Stages returns the completed stages in pipeline order.
func (f *FileState) Stages() []stage.Stage {
	out := make([]stage.Stage, 0, len(f.StagesCompleted))
	for s := range f.StagesCompleted {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Clone returns a deep copy.
func (f *FileState) Clone() *FileState {
	if f == nil {
		return nil
	}
	clone := *f
	clone.StagesCompleted = maps.Clone(f.StagesCompleted)
	clone.Artifacts = maps.Clone(f.Artifacts)
	clone.Metadata = maps.Clone(f.Metadata)
	clone.ensureMaps()
	return &clone
}

func (f *FileState) ensureMaps() {
	if f.StagesCompleted == nil {
		f.StagesCompleted = make(map[stage.Stage]struct{})
	}
	if f.Artifacts == nil {
		f.Artifacts = make(map[stage.Stage]string)
	}
	if f.Metadata == nil {
		f.Metadata = make(map[string]string)
	}
}

type fileStateJSON struct {
	Filename        string                     `json:"filename"`
	AudioPath       *string                    `json:"audio_path"`
	Intake          string                     `json:"intake,omitempty"`
	StagesCompleted []string                   `json:"stages_completed"`
	Artifacts       map[string]string          `json:"artifacts"`
	Metadata        map[string]json.RawMessage `json:"metadata"`
	LastUpdated     string                     `json:"last_updated"`
}

// MarshalJSON writes the persisted form: stage names sorted by pipeline order
// and a nanosecond precision UTC timestamp.
func (f *FileState) MarshalJSON() ([]byte, error) {
	wire := fileStateJSON{
		Filename:        f.Identity,
		Intake:          string(f.Intake),
		StagesCompleted: make([]string, 0, len(f.StagesCompleted)),
		Artifacts:       make(map[string]string, len(f.Artifacts)),
		Metadata:        make(map[string]json.RawMessage, len(f.Metadata)),
		LastUpdated:     f.LastUpdated.UTC().Format(time.RFC3339Nano),
	}
	if f.SourcePath != "" {
		path := f.SourcePath
		wire.AudioPath = &path
	}
	for _, s := range f.Stages() {
		wire.StagesCompleted = append(wire.StagesCompleted, s.String())
	}
	for s, loc := range f.Artifacts {
		wire.Artifacts[s.String()] = loc
	}
	for key, value := range f.Metadata {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata %q: %w", key, err)
		}
		wire.Metadata[key] = encoded
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes a persisted record, rejecting unknown stage names.
// Non-string metadata values written by older versions are kept as their
// JSON text.
func (f *FileState) UnmarshalJSON(data []byte) error {
	var wire fileStateJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	intake, err := stage.ParseIntake(wire.Intake)
	if err != nil {
		return err
	}
	out := FileState{
		Identity:        wire.Filename,
		Intake:          intake,
		StagesCompleted: make(map[stage.Stage]struct{}, len(wire.StagesCompleted)),
		Artifacts:       make(map[stage.Stage]string, len(wire.Artifacts)),
		Metadata:        make(map[string]string, len(wire.Metadata)),
	}
	if wire.AudioPath != nil {
		out.SourcePath = *wire.AudioPath
	}
	for _, name := range wire.StagesCompleted {
		s, err := stage.ParseStage(name)
		if err != nil {
			return err
		}
		out.StagesCompleted[s] = struct{}{}
	}
	for name, loc := range wire.Artifacts {
		s, err := stage.ParseStage(name)
		if err != nil {
			return err
		}
		if loc = strings.TrimSpace(loc); loc == "" {
			continue
		}
		out.Artifacts[s] = loc
		out.StagesCompleted[s] = struct{}{}
	}
	for key, raw := range wire.Metadata {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			out.Metadata[key] = text
			continue
		}
		out.Metadata[key] = string(raw)
	}
	if wire.LastUpdated != "" {
		ts, err := parseTimestamp(wire.LastUpdated)
		if err != nil {
			return fmt.Errorf("last_updated: %w", err)
		}
		out.LastUpdated = ts
	}
	*f = out
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.ParseInLocation(legacyTimeLayout, value, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
