// Package ffmpeg wraps the ffmpeg binary for the two audio jobs the pipeline
// needs: extracting an audio track from a video container and splitting audio
// into fixed-length WAV chunks for transcription.
package ffmpeg
