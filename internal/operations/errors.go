package operations

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"neareports/internal/reports"
	"neareports/internal/workbook"
)

// ErrStepNotFound is returned when a step ID is not registered.
var ErrStepNotFound = errors.New("step not found")

// Kind classifies a step failure.
type Kind string

const (
	KindEngineUnavailable Kind = "engine_unavailable"
	KindFileNotFound      Kind = "file_not_found"
	KindMalformedData     Kind = "malformed_data"
	KindUnexpected        Kind = "unexpected"
)

// StepError names the step at which RunAll stopped.
type StepError struct {
	StepID   string `json:"step_id"`
	StepName string `json:"step_name"`
	Cause    error  `json:"-"`
}

// Error implements the error interface
func (e *StepError) Error() string {
	if e == nil {
		return "unknown step error"
	}
	return fmt.Sprintf("%s step failed: %v", e.StepName, e.Cause)
}

// Unwrap returns the underlying error
func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Classify maps a step error to its kind and the message shown to users.
func Classify(err error) (Kind, string) {
	switch {
	case errors.Is(err, workbook.ErrUnavailable):
		return KindEngineUnavailable, "Error: Excel could not start. Make sure the spreadsheet engine is available and no other run holds it."
	case errors.Is(err, fs.ErrNotExist):
		return KindFileNotFound, fmt.Sprintf("Error: A required file was not found: %s. Please check that all source files and templates exist.", missingName(err))
	case errors.Is(err, reports.ErrMalformedData), errors.Is(err, workbook.ErrSheetMissing):
		return KindMalformedData, "Error: One of the data sheets was empty or malformed."
	default:
		return KindUnexpected, "Unexpected error: " + lastLine(err)
	}
}

func missingName(err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return filepath.Base(pathErr.Path)
	}
	return lastLine(err)
}

// lastLine returns the final non-blank line of err's message.
func lastLine(err error) string {
	if err == nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
