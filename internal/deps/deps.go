// Package deps resolves external encoder and helper binaries on PATH.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary OATS may invoke.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// LookupFunc resolves a command to an absolute executable path.
type LookupFunc func(command string) (string, error)

// Resolve looks up command with exec.LookPath and reports a readable error.
func Resolve(command string) (string, error) {
	return ResolveWith(exec.LookPath, command)
}

// ResolveWith resolves command using lookup.
func ResolveWith(lookup LookupFunc, command string) (string, error) {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return "", fmt.Errorf("command not configured")
	}
	if lookup == nil {
		lookup = exec.LookPath
	}
	path, err := lookup(cmd)
	if err != nil {
		return "", fmt.Errorf("binary %q not found", cmd)
	}
	return path, nil
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	return CheckBinariesWith(exec.LookPath, requirements)
}

// CheckBinariesWith is CheckBinaries with an explicit lookup function.
func CheckBinariesWith(lookup LookupFunc, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		path, err := ResolveWith(lookup, status.Command)
		if err != nil {
			status.Detail = err.Error()
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}
