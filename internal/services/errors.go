package services

import (
	"errors"
	"fmt"
	"strings"
)

// Markers classify failures. Test with errors.Is.
var (
	// ErrExternalTool marks a failed or missing encoder, decoder or helper.
	ErrExternalTool = errors.New("external tool error")
	// ErrValidation marks bad user input such as a malformed format string.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks an unusable configuration or environment.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a missing source, target or record.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error whose message reads "<marker>: <stage>: <operation>:
// <message>: <err>" and which matches both marker and err under errors.Is.
// A nil marker leaves the error unclassified.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	switch {
	case marker == nil && err == nil:
		return errors.New(detail)
	case marker == nil:
		return fmt.Errorf("%s: %w", detail, err)
	case err == nil:
		return fmt.Errorf("%w: %s", marker, detail)
	default:
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
}

// IsFatalConfig reports whether err stopped a run before any work was
// scheduled.
func IsFatalConfig(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrValidation)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{stage, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "unspecified failure"
	}
	return strings.Join(parts, ": ")
}
