// Package state persists per-item pipeline progress.
//
// FileState records which stages an item completed and where their artifacts
// live. Store keeps every record in one JSON document that is rewritten
// atomically after each mutation, survives corruption by starting empty, and
// accepts documents written by older versions (flat identity maps and legacy
// stage names). Artifact existence is decided by an ArtifactChecker so remote
// locations such as published notes can be verified or trusted per scheme.
package state
