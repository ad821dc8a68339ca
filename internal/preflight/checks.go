package preflight

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"scribe/internal/config"
	"scribe/internal/deps"
)

// MinFreeBytes is the free space a run needs for extracted audio and chunks.
const MinFreeBytes = 1 << 30

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies the filesystem holding path has at least min bytes
// available to unprivileged users.
func CheckDiskSpace(name, path string, min uint64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	detail := fmt.Sprintf("%s free on %s", humanize.IBytes(free), path)
	if free < min {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, humanize.IBytes(min))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSecret verifies a credential value is configured without echoing it.
func CheckSecret(name, value string) Result {
	if strings.TrimSpace(value) == "" {
		return Result{Name: name, Detail: "missing"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckCredentialsFile verifies a Google service account key is readable JSON.
func CheckCredentialsFile(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "credentials_file not configured"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	var key struct {
		Type        string `json:"type"`
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: invalid json: %v)", path, err)}
	}
	if key.ClientEmail == "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: no client_email)", path)}
	}
	return Result{Name: name, Passed: true, Detail: key.ClientEmail}
}

// CheckSummaryPrompt verifies at least one summary prompt source is set and
// that a configured prompt file is readable.
func CheckSummaryPrompt(cfg *config.Config) Result {
	const name = "Summary prompt"
	s := cfg.Summary
	switch {
	case strings.TrimSpace(s.PromptFile) != "":
		if _, err := os.Stat(s.PromptFile); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", s.PromptFile, err)}
		}
		return Result{Name: name, Passed: true, Detail: s.PromptFile}
	case strings.TrimSpace(s.PromptDocID) != "":
		return Result{Name: name, Passed: true, Detail: "drive doc " + s.PromptDocID}
	case strings.TrimSpace(s.Prompt) != "":
		return Result{Name: name, Passed: true, Detail: "inline"}
	default:
		return Result{Name: name, Detail: "no prompt, prompt_file or prompt_doc_id configured"}
	}
}

// CheckSystemDeps evaluates the binaries a run shells out to.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return []deps.Status{deps.CheckFFmpeg(cfg.FFmpegBinary())}
}
