// Package main hosts the scribe CLI entrypoint and command graph.
//
// The Cobra command tree runs the transcription pipeline once or in watch
// mode, and exposes the state document, error log and run history for
// inspection. Configuration resolution, logger construction and service
// client wiring live in commandContext so subcommands stay declarative.
//
// Keep this package lean: add behavior to the internal packages first and
// surface it here through a command or flag.
package main
