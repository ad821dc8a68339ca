package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RetentionTarget selects files in Dir whose base name matches Pattern.
// Keep lists paths that are never removed, such as the active log file.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Keep    []string
}

// Prune deletes target files last modified more than days ago and returns
// how many were removed. days <= 0 disables pruning.
func Prune(logger *slog.Logger, days int, targets ...RetentionTarget) int {
	if days <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	removed := 0
	for _, target := range targets {
		if target.Dir == "" || target.Pattern == "" {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(target.Dir, target.Pattern))
		if err != nil {
			continue
		}
		for _, path := range matches {
			if keep(path, target.Keep) {
				continue
			}
			info, err := os.Stat(path)
			if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "retention remove failed; file remains", "retention_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check file permissions on "+target.Dir),
					String(FieldImpact, "old file stays on disk"),
				)
				continue
			}
			removed++
			logger.Debug("pruned old file", String("path", path), String(FieldEventType, "retention_pruned"))
		}
	}
	return removed
}

func keep(path string, keep []string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, k := range keep {
		if k == "" {
			continue
		}
		if kabs, err := filepath.Abs(k); err == nil && kabs == abs {
			return true
		}
	}
	return false
}
