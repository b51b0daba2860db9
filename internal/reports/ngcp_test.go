package reports

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neareports/internal/ocr"
	"neareports/internal/shared/testutil"
)

func TestNGCPMarksMissingPages(t *testing.T) {
	te := newTestEnv(t, &fakeRenderer{pages: 2}, byMode("VAL", ""))
	te.supportingFile(t, "NGCP BILL.pdf")

	step := NewNGCPStep(te.Env)
	assert.Equal(t, "NGCP OCR", step.Name())

	paths, err := step.Execute(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	for _, cell := range []string{"C11", "C12", "C15", "C16", "C17", "C18", "C19", "C21"} {
		assert.Equal(t, "VAL", testutil.ReadCell(t, paths[0], "NGCP Bill", cell), cell)
	}
	for _, cell := range []string{"C24", "C25"} {
		assert.Equal(t, ocr.PageMissing, testutil.ReadCell(t, paths[0], "NGCP Bill", cell), cell)
	}
	assert.Equal(t, "June", testutil.ReadCell(t, paths[0], "NGCP Bill", "C3"))
}

func TestNGCPRenderFailureReturnsEmpty(t *testing.T) {
	te := newTestEnv(t, &fakeRenderer{err: errors.New("damaged pdf")}, byMode("VAL", ""))
	te.supportingFile(t, "NGCP BILL.pdf")

	paths, err := NewNGCPStep(te.Env).Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, paths)
	testutil.AssertLogContains(t, te.logs, slog.LevelWarn, "ngcp_render_failed")
}

func TestNGCPMissingPDFReturnsEmpty(t *testing.T) {
	te := newTestEnv(t, &fakeRenderer{pages: 3}, byMode("VAL", ""))

	paths, err := NewNGCPStep(te.Env).Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestNGCPRecognizerErrorPropagates(t *testing.T) {
	boom := errors.New("tesseract not installed")
	rec := recognizerFunc(func(context.Context, image.Image, ocr.Options) (string, error) {
		return "", boom
	})
	te := newTestEnv(t, &fakeRenderer{pages: 3}, rec)
	te.supportingFile(t, "NGCP BILL.pdf")

	_, err := NewNGCPStep(te.Env).Execute(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}
