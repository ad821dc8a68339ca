// Package watch re-runs the pipeline when new media lands in a watched
// folder. Events are debounced so a batch of copies triggers one run, and
// runs never overlap.
package watch
