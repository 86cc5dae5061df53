package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrOperation     = errors.New("operation error")
	ErrScan          = errors.New("scan error")
	ErrExternalTool  = errors.New("external tool error")
	ErrBatchAbort    = errors.New("batch aborted")
	ErrConflict      = errors.New("concurrency conflict")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes phase context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, phase, operation, message string, err error) error {
	detail := buildDetail(phase, operation, message)
	if marker == nil {
		marker = ErrOperation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Marker returns the sentinel the error was tagged with, or nil when the
// error carries no known marker.
func Marker(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		ErrValidation,
		ErrOperation,
		ErrScan,
		ErrExternalTool,
		ErrBatchAbort,
		ErrConflict,
		ErrNotFound,
		ErrConfiguration,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

// FatalToFile reports whether the error must fail the file's plan generation
// outright. Operation data errors are never downgraded by error-mode
// settings; collaborator failures are surfaced per-file as-is.
func FatalToFile(err error) bool {
	return errors.Is(err, ErrOperation) || errors.Is(err, ErrValidation)
}

func buildDetail(phase, operation, message string) string {
	parts := make([]string, 0, 3)
	if phase = strings.TrimSpace(phase); phase != "" {
		parts = append(parts, phase)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
