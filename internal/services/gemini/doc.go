// Package gemini calls the Gemini API through google.golang.org/genai for
// audio transcription and text summaries. Calls are retried with retry-go
// when the failure is transient.
package gemini
