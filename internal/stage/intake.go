package stage

import (
	"fmt"
	"strings"
)

// Intake identifies where an item entered the pipeline. It decides the entry
// stage an item must pass before transcription.
type Intake string

const (
	IntakeVideo Intake = "video"
	IntakeDrive Intake = "drive"
	IntakeAudio Intake = "audio"
)

// EntryStage returns the stage that produces the item's audio, or false when
// the source file already is the audio.
func (k Intake) EntryStage() (Stage, bool) {
	switch k {
	case IntakeVideo:
		return AudioExtracted, true
	case IntakeDrive:
		return AudioDownloaded, true
	default:
		return 0, false
	}
}

// Priority orders intake kinds when the same identity arrives from several
// sources. Lower wins.
func (k Intake) Priority() int {
	switch k {
	case IntakeVideo:
		return 0
	case IntakeDrive:
		return 1
	case IntakeAudio:
		return 2
	default:
		return 3
	}
}

// ParseIntake validates a persisted intake kind. Empty input means local audio,
// which is what documents written before intake kinds were recorded contain.
func ParseIntake(value string) (Intake, error) {
	switch k := Intake(strings.ToLower(strings.TrimSpace(value))); k {
	case IntakeVideo, IntakeDrive, IntakeAudio:
		return k, nil
	case "":
		return IntakeAudio, nil
	default:
		return "", fmt.Errorf("unknown intake kind %q", value)
	}
}
