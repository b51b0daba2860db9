package reports

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"neareports/internal/ocr"
	"neareports/internal/period"
	"neareports/internal/shared/testutil"
	"neareports/internal/workbook"
)

// june is the month resolved from the fixed clock with offset 1.
var june = period.Month{Year: 2024, Month: time.June}

type fakeRenderer struct {
	pages int
	err   error
}

func (f *fakeRenderer) Render(_ context.Context, _ string, pr ocr.PageRange) (*ocr.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	n, first := f.pages, 0
	if pr.First > 0 {
		first = pr.First - 1
		n = pr.Last - pr.First + 1
	}
	doc := &ocr.Document{First: first}
	for i := 0; i < n; i++ {
		doc.Pages = append(doc.Pages, image.NewGray(image.Rect(0, 0, 1, 1)))
	}
	return doc, nil
}

type recognizerFunc func(ctx context.Context, img image.Image, opts ocr.Options) (string, error)

func (f recognizerFunc) Recognize(ctx context.Context, img image.Image, opts ocr.Options) (string, error) {
	return f(ctx, img, opts)
}

// byMode answers text regions with text and sum regions with sum.
func byMode(text, sum string) recognizerFunc {
	return func(_ context.Context, _ image.Image, opts ocr.Options) (string, error) {
		if opts.Whitelist != "" {
			return sum, nil
		}
		return text, nil
	}
}

type testEnv struct {
	*Env
	neaRoot string
	ercRoot string
	logs    *testutil.BufferedSlogHandler
}

func newTestEnv(t *testing.T, renderer ocr.Renderer, rec ocr.Recognizer) *testEnv {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	regions, err := ocr.DefaultRegions()
	require.NoError(t, err)

	nea := filepath.Join(t.TempDir(), "NEA")
	erc := filepath.Join(t.TempDir(), "ERC")
	guard := workbook.NewGuard(time.Second, logger)

	return &testEnv{
		Env: &Env{
			Locator:     workbook.NewLocator(nea, ".xlsx", guard, logger),
			Guard:       guard,
			ERCRoot:     erc,
			Renderer:    renderer,
			Extractor:   ocr.NewExtractor(rec, logger, nil),
			Regions:     regions,
			Concurrency: 4,
			Logger:      logger,
			Now: func() time.Time {
				return time.Date(2024, time.July, 15, 9, 0, 0, 0, time.UTC)
			},
		},
		neaRoot: nea,
		ercRoot: erc,
		logs:    logs,
	}
}

func (te *testEnv) supportingFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(te.Locator.SupportingDir(june), name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0644))
	return path
}
