// Package executors implements one stage.Executor per pipeline stage.
//
// Executors are thin: they read the artifacts of earlier stages from the
// request, call their collaborator (ffmpeg, Gemini, an OpenAI-compatible API,
// HackMD or Google Drive) through a small interface, write their own artifact
// and return a stage.Result. They never touch the state store; recording the
// outcome is the orchestrator's job.
package executors
