package executors

import (
	"fmt"
	"os"
	"strings"

	"scribe/internal/fileutil"
	"scribe/internal/services"
	"scribe/internal/stage"
)

// readArtifact loads the text artifact recorded for s.
func readArtifact(req stage.Request, current, s stage.Stage) (string, string, error) {
	path, ok := req.Artifact(s)
	if !ok {
		return "", "", services.Wrap(services.ErrValidation, current.String(), "load input",
			fmt.Sprintf("no %s artifact recorded", s), nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", path, services.Wrap(services.ErrNotFound, current.String(), "load input",
			fmt.Sprintf("read %s artifact", s), err)
	}
	return string(data), path, nil
}

func writeArtifact(current stage.Stage, path, content string) error {
	if err := fileutil.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		return services.Wrap(services.ErrExternalTool, current.String(), "write artifact", path, err)
	}
	return nil
}

func requireAudio(req stage.Request, current stage.Stage) (string, error) {
	return requireFile(req.AudioPath(), current)
}

func requireFile(path string, current stage.Stage) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", services.Wrap(services.ErrValidation, current.String(), "resolve input", "no input path", nil)
	}
	if !fileutil.NonEmptyFile(path) {
		return "", services.Wrap(services.ErrNotFound, current.String(), "resolve input", path, nil)
	}
	return path, nil
}

// stageErr attaches the stage name to a collaborator failure while keeping its marker.
func stageErr(current stage.Stage, operation string, err error) error {
	if services.Kind(err) != services.ErrorKindUnknown {
		return fmt.Errorf("%s: %s: %w", current, operation, err)
	}
	return services.Wrap(services.ErrExternalTool, current.String(), operation, "", err)
}
