package state

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
)

// ArtifactChecker decides whether a recorded artifact location still exists.
type ArtifactChecker interface {
	Exists(ctx context.Context, location string) (bool, error)
}

// CheckerFunc adapts a function to ArtifactChecker.
type CheckerFunc func(ctx context.Context, location string) (bool, error)

// Exists calls f.
func (f CheckerFunc) Exists(ctx context.Context, location string) (bool, error) {
	return f(ctx, location)
}

// LocalChecker stats local filesystem paths.
type LocalChecker struct{}

// Exists reports whether location is present on disk.
func (LocalChecker) Exists(_ context.Context, location string) (bool, error) {
	if strings.TrimSpace(location) == "" {
		return false, nil
	}
	_, err := os.Stat(location)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// SchemeChecker routes locations by scheme. Plain paths go to the local
// checker; remote locations (hackmd:, gdrive:, https://) go to the checker
// registered for their scheme and are assumed present when none is.
type SchemeChecker struct {
	local  ArtifactChecker
	mu     sync.RWMutex
	remote map[string]ArtifactChecker
}

// NewSchemeChecker returns a checker that stats local paths.
func NewSchemeChecker() *SchemeChecker {
	return &SchemeChecker{local: LocalChecker{}, remote: make(map[string]ArtifactChecker)}
}

// Register installs a checker for a remote scheme such as "hackmd".
func (c *SchemeChecker) Register(scheme string, checker ArtifactChecker) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" || checker == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remote[scheme] = checker
}

// Exists implements ArtifactChecker.
func (c *SchemeChecker) Exists(ctx context.Context, location string) (bool, error) {
	scheme := Scheme(location)
	if scheme == "" {
		return c.local.Exists(ctx, location)
	}
	c.mu.RLock()
	checker, ok := c.remote[scheme]
	c.mu.RUnlock()
	if !ok {
		return true, nil
	}
	return checker.Exists(ctx, location)
}

// Scheme returns the lowercase scheme of a remote location ("hackmd" for
// "hackmd:abc", "https" for a URL) or "" for filesystem paths.
func Scheme(location string) string {
	location = strings.TrimSpace(location)
	idx := strings.Index(location, ":")
	// Single letters are Windows drive names, not schemes.
	if idx < 2 {
		return ""
	}
	prefix := location[:idx]
	for _, r := range prefix {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return ""
		}
	}
	return strings.ToLower(prefix)
}

// RemoteID strips the scheme from a remote location ("hackmd:abc" -> "abc").
func RemoteID(location string) string {
	scheme := Scheme(location)
	if scheme == "" {
		return location
	}
	return strings.TrimPrefix(strings.TrimSpace(location)[len(scheme)+1:], "//")
}
