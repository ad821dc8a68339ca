// Package services defines shared utilities consumed by the stage executors
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp item identities, stage names, run ids and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap and Details helpers that turn
//     collaborator failures into recorded, classified errors.
//
// Integration clients live in subpackages (ffmpeg, gemini, openai, gdrive,
// hackmd). Use these helpers when wiring new executors so operational
// behaviour stays uniform across the pipeline.
package services
