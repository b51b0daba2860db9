package operations

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neareports/internal/reports"
	"neareports/internal/workbook"
)

func TestClassify(t *testing.T) {
	_, statErr := os.Stat(filepath.Join(t.TempDir(), "templates", "PSR 2024.xlsx"))
	require.Error(t, statErr)

	tests := []struct {
		name    string
		err     error
		kind    Kind
		message string
	}{
		{
			name:    "engine unavailable",
			err:     fmt.Errorf("open x.xlsx: %w", workbook.ErrUnavailable),
			kind:    KindEngineUnavailable,
			message: "Error: Excel could not start. Make sure the spreadsheet engine is available and no other run holds it.",
		},
		{
			name:    "missing file names the base name",
			err:     fmt.Errorf("derive: %w", statErr),
			kind:    KindFileNotFound,
			message: "Error: A required file was not found: PSR 2024.xlsx. Please check that all source files and templates exist.",
		},
		{
			name:    "malformed data",
			err:     fmt.Errorf("read export: %w", reports.ErrMalformedData),
			kind:    KindMalformedData,
			message: "Error: One of the data sheets was empty or malformed.",
		},
		{
			name:    "missing sheet counts as malformed",
			err:     fmt.Errorf("%w: DATA", workbook.ErrSheetMissing),
			kind:    KindMalformedData,
			message: "Error: One of the data sheets was empty or malformed.",
		},
		{
			name:    "unexpected keeps last line",
			err:     errors.New("traceback\n  at step\ndivision by zero\n"),
			kind:    KindUnexpected,
			message: "Unexpected error: division by zero",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, msg := Classify(tt.err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.message, msg)
		})
	}
}

func TestStepErrorUnwraps(t *testing.T) {
	err := &StepError{StepID: "supply", StepName: "Supply OCR", Cause: workbook.ErrUnavailable}

	assert.Equal(t, "Supply OCR step failed: "+workbook.ErrUnavailable.Error(), err.Error())
	assert.ErrorIs(t, err, workbook.ErrUnavailable)

	var target *StepError
	require.ErrorAs(t, fmt.Errorf("run: %w", err), &target)
	assert.Equal(t, "Supply OCR", target.StepName)
}
