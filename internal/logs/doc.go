// Package logs reads the scribe log file for the `scribe logs` command: the
// last N lines, an optional follow loop driven by fsnotify, and a filter that
// understands both the console and the JSON log formats.
package logs
