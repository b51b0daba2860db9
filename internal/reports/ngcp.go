package reports

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"neareports/internal/files"
	"neareports/internal/ocr"
	"neareports/internal/period"
	"neareports/internal/workbook"
)

const ngcpSheet = "NGCP Bill"

// NewNGCPStep builds the NGCP Bill workbook from every page of the NGCP
// bill PDF.
func NewNGCPStep(e *Env) *Step {
	return &Step{
		id:   "ngcp",
		name: "NGCP OCR",
		exec: func(ctx context.Context, offset int) ([]string, error) {
			m := e.month(offset)
			return e.run(ctx, m, job{kind: workbook.NGCPBill, gather: e.gatherNGCP})
		},
	}
}

func (e *Env) gatherNGCP(ctx context.Context, m period.Month) (fillFunc, error) {
	pdf := filepath.Join(e.Locator.SupportingDir(m), "NGCP BILL.pdf")
	if !files.Exists(pdf) {
		e.logger().InfoContext(ctx, "ngcp_source_missing", slog.String("path", pdf))
		return nil, nil
	}

	doc, err := e.Renderer.Render(ctx, pdf, ocr.PageRange{})
	if err != nil {
		e.logger().WarnContext(ctx, "ngcp_render_failed", slog.String("path", pdf), slog.String("error", err.Error()))
		return nil, nil
	}

	values, err := e.recognizeAll(ctx, doc, e.Regions.For("ngcp"))
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, sess *workbook.Session) error {
		for _, r := range e.Regions.For("ngcp") {
			if err := sess.SetCell(ngcpSheet, r.Cell, values[r.Cell]); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

// recognizeAll reads text regions concurrently and returns values keyed by
// destination cell.
func (e *Env) recognizeAll(ctx context.Context, doc *ocr.Document, regions []ocr.Region) (map[string]string, error) {
	limit := e.Concurrency
	if limit < 1 {
		limit = 1
	}

	var mu sync.Mutex
	values := make(map[string]string, len(regions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, r := range regions {
		g.Go(func() error {
			text, err := e.Extractor.Text(gctx, doc, r)
			if err != nil {
				return err
			}
			mu.Lock()
			values[r.Cell] = text
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}
