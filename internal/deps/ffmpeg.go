package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// FFmpegEnv overrides the configured ffmpeg binary when set.
const FFmpegEnv = "SCRIBE_FFMPEG"

// ResolveFFmpeg returns the ffmpeg binary to execute. The environment override
// wins over the configured value; an empty result falls back to "ffmpeg" on
// PATH.
func ResolveFFmpeg(configured string) string {
	if env := strings.TrimSpace(os.Getenv(FFmpegEnv)); env != "" {
		return env
	}
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	return executableName("ffmpeg")
}

// CheckFFmpeg reports whether the ffmpeg binary used for audio extraction and
// chunking is runnable.
func CheckFFmpeg(configured string) Status {
	command := ResolveFFmpeg(configured)
	status := Status{Name: "FFmpeg", Command: command}
	if strings.ContainsRune(command, filepath.Separator) {
		info, err := os.Stat(command)
		if err != nil || !isExecutable(info) {
			status.Detail = fmt.Sprintf("binary %q is not executable", command)
			return status
		}
		status.Available = true
		return status
	}
	resolved, err := lookPath(command)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
