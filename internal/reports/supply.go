package reports

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"neareports/internal/files"
	"neareports/internal/ocr"
	"neareports/internal/period"
	"neareports/internal/workbook"
)

const (
	supplySheet = "Power Supply"
	csrdSheet   = "CSRDDetails"

	// Source rows in the CSRD workbook and their destination cells.
	csrdLRow  = 105
	csrdKRow  = 192
	csrdLCell = "L12"
	csrdKCell = "K12"
)

// supplyBillPage is the 1-based page of both supply bills that carries the
// extracted fields.
const supplyBillPage = 2

// NewSupplyStep builds the Power Supply workbook from the 17MW and Excess
// bills plus the yearly CSRD workbook.
func NewSupplyStep(e *Env) *Step {
	return &Step{
		id:   "supply",
		name: "Supply OCR",
		exec: func(ctx context.Context, offset int) ([]string, error) {
			m := e.month(offset)
			return e.run(ctx, m, job{kind: workbook.PowerSupply, gather: e.gatherSupply})
		},
	}
}

// csrdColumn maps January..December to columns C..N.
func csrdColumn(mo int) string {
	return string(rune('C' + mo - 1))
}

func (e *Env) gatherSupply(ctx context.Context, m period.Month) (fillFunc, error) {
	dir := e.Locator.SupportingDir(m)
	mainBill := filepath.Join(dir, "17MW.pdf")
	excess := filepath.Join(dir, "Excess.pdf")
	for _, p := range []string{mainBill, excess} {
		if !files.Exists(p) {
			e.logger().InfoContext(ctx, "supply_source_missing", slog.String("path", p))
			return nil, nil
		}
	}

	pages := ocr.PageRange{First: supplyBillPage, Last: supplyBillPage}
	mainDoc, err := e.Renderer.Render(ctx, mainBill, pages)
	if err != nil {
		return nil, err
	}
	excessDoc, err := e.Renderer.Render(ctx, excess, pages)
	if err != nil {
		return nil, err
	}

	region := func(field string) (ocr.Region, error) {
		r, ok := e.Regions.Lookup("supply", field)
		if !ok {
			return r, fmt.Errorf("no OCR region for supply/%s", field)
		}
		return r, nil
	}

	values := make(map[string]string, 7)

	interval, err := region("service_interval")
	if err != nil {
		return nil, err
	}
	a, err := e.Extractor.Text(ctx, mainDoc, interval)
	if err != nil {
		return nil, err
	}
	b, err := e.Extractor.Text(ctx, excessDoc, interval)
	if err != nil {
		return nil, err
	}
	values[interval.Cell] = a + " & " + b

	for _, field := range []string{"start_date", "end_date"} {
		r, err := region(field)
		if err != nil {
			return nil, err
		}
		if values[r.Cell], err = e.Extractor.Text(ctx, mainDoc, r); err != nil {
			return nil, err
		}
	}

	for _, field := range []string{"energy_total", "tax_total"} {
		r, err := region(field)
		if err != nil {
			return nil, err
		}
		total, missing := decimal.Zero, false
		for _, doc := range []*ocr.Document{mainDoc, excessDoc} {
			v, ok, err := e.Extractor.Sum(ctx, doc, r)
			if err != nil {
				return nil, err
			}
			missing = missing || !ok
			total = total.Add(v)
		}
		if missing {
			values[r.Cell] = ocr.PageMissing
		} else {
			values[r.Cell] = ocr.FormatSum(total)
		}
	}

	l, k := e.csrdValues(ctx, filepath.Join(dir, fmt.Sprintf("Fscsrd%d.xlsx", m.Year)), m)
	values[csrdLCell] = formatNumber(l)
	values[csrdKCell] = formatNumber(k)

	return func(ctx context.Context, sess *workbook.Session) error {
		for cell, v := range values {
			if err := sess.SetCell(supplySheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

// csrdValues reads the month's CSRD figures. Any failure, including a
// missing workbook, yields zeros and a warning.
func (e *Env) csrdValues(ctx context.Context, path string, m period.Month) (l, k float64) {
	log := e.logger().With(slog.String("path", path))
	if !files.Exists(path) {
		log.WarnContext(ctx, "csrd_source_missing")
		return 0, 0
	}

	sess, err := e.Guard.Open(ctx, path)
	if err != nil {
		log.WarnContext(ctx, "csrd_lookup_failed", slog.String("error", err.Error()))
		return 0, 0
	}
	defer sess.Close()

	col := csrdColumn(int(m.Month))
	l, errL := sess.GetFloat(csrdSheet, col+strconv.Itoa(csrdLRow))
	k, errK := sess.GetFloat(csrdSheet, col+strconv.Itoa(csrdKRow))
	if errL != nil || errK != nil {
		log.WarnContext(ctx, "csrd_lookup_failed",
			slog.Any("l_error", errL),
			slog.Any("k_error", errK))
		return 0, 0
	}
	return l, k
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
