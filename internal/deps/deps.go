package deps

import (
	"fmt"
	"os/exec"
)

// Status reports whether an external binary can be executed.
type Status struct {
	Name      string
	Command   string
	Available bool
	Detail    string
}

func lookPath(cmd string) (string, error) {
	if cmd == "" {
		return "", fmt.Errorf("command not configured")
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		return "", fmt.Errorf("binary %q not found on PATH", cmd)
	}
	return path, nil
}
