package textutil

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Identity derives the item identity from a file name or path: the base name
// without its extension, NFC-normalized and trimmed. Drive uploads from macOS
// often arrive decomposed (NFD), so normalization keeps one item per recording
// regardless of where it was picked up.
func Identity(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return Canonical(base)
}

// Canonical NFC-normalizes and trims an identity that was typed or stored
// as is, without touching dots that are part of the name.
func Canonical(identity string) string {
	return strings.TrimSpace(norm.NFC.String(identity))
}

// NoteTitle turns an identity into a human readable title: a trailing
// "_parsed" marker is dropped and underscores become spaces.
func NoteTitle(identity string) string {
	title := strings.TrimSuffix(strings.TrimSpace(identity), "_parsed")
	title = strings.ReplaceAll(title, "_", " ")
	return strings.Join(strings.Fields(title), " ")
}
