// Package gdrive wraps the Google Drive v3 API for the pipeline's remote
// operations: listing and downloading intake files, per-item output folders,
// uploads, moves between folders, and exporting a Google Doc as plain text.
//
// Every call goes through retry-go; 429 and 5xx responses are retried, other
// API errors are classified with the services error markers.
package gdrive
