package reports

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"neareports/internal/files"
	"neareports/internal/period"
	"neareports/internal/workbook"
)

const (
	interruptionSheet = "interruption"
	energySheet       = "Energy Input and Output"

	// ERC exports carry 11 banner rows; row 12 is the header.
	ercHeaderRow = 12
	firstDataRow = 19
	firstDataCol = 2 // B
)

// Columns H and P hold formulas in the template and are never written.
var protectedColumns = map[int]bool{8: true, 16: true}

var clearedRanges = []string{"B19:G1000", "I19:M1000"}

var interruptionDateLayouts = []string{
	"1/2/06",
	"1/2/2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"1-2-06",
	"1-2-2006",
	"Jan 2, 2006",
	"2-Jan-06",
}

// NewInterruptionStep builds the Energy and Interruption Data workbook from
// the month's planned and unplanned ERC exports.
func NewInterruptionStep(e *Env) *Step {
	return &Step{
		id:   "interruption",
		name: "Interruption",
		exec: func(ctx context.Context, offset int) ([]string, error) {
			m := e.month(offset)
			return e.run(ctx, m, job{
				kind:       workbook.EnergyInterruption,
				stampSheet: energySheet,
				gather:     e.gatherInterruptions,
			})
		},
	}
}

// ERCDir returns the folder holding the year's interruption exports.
func ERCDir(root string, m period.Month) string {
	return filepath.Join(root, fmt.Sprintf("%d POWER INTERRUPTIONS", m.Year))
}

// interruptionSources finds the planned and unplanned exports for m. The
// planned pattern also matches UNPLANNED names, so those are excluded.
func interruptionSources(dir string, m period.Month) (planned, unplanned string, err error) {
	key := fmt.Sprintf("%02d_%s", int(m.Month), m.UpperName())

	found, err := files.FindByPattern(dir, "*"+key+"*PLANNED*.xlsx")
	if err != nil {
		return "", "", err
	}
	for _, f := range found {
		if !strings.Contains(strings.ToUpper(f.Name), "UNPLANNED") {
			planned = f.Path
			break
		}
	}

	u, ok, err := files.FindFirst(dir, "*"+key+"*UNPLANNED*.xlsx")
	if err != nil {
		return "", "", err
	}
	if ok {
		unplanned = u.Path
	}
	return planned, unplanned, nil
}

func (e *Env) gatherInterruptions(ctx context.Context, m period.Month) (fillFunc, error) {
	dir := ERCDir(e.ERCRoot, m)
	planned, unplanned, err := interruptionSources(dir, m)
	if err != nil {
		return nil, err
	}
	if planned == "" || unplanned == "" {
		e.logger().InfoContext(ctx, "interruption_source_missing",
			slog.String("dir", dir),
			slog.Bool("planned_found", planned != ""),
			slog.Bool("unplanned_found", unplanned != ""))
		return nil, nil
	}

	var table [][]string
	for _, path := range []string{planned, unplanned} {
		rows, err := e.readERCExport(ctx, path)
		if err != nil {
			return nil, err
		}
		table = append(table, rows...)
	}
	records := prepareInterruptions(table)

	e.logger().InfoContext(ctx, "interruption_rows_prepared",
		slog.Int("source_rows", len(table)),
		slog.Int("rows", len(records)))

	return func(ctx context.Context, sess *workbook.Session) error {
		for _, rng := range clearedRanges {
			if err := sess.ClearRange(interruptionSheet, rng); err != nil {
				return err
			}
		}
		for i, rec := range records {
			col := firstDataCol
			for _, v := range rec {
				for protectedColumns[col] {
					col++
				}
				cell, err := excelize.CoordinatesToCellName(col, firstDataRow+i)
				if err != nil {
					return err
				}
				if err := sess.SetCell(interruptionSheet, cell, v); err != nil {
					return err
				}
				col++
			}
		}
		return nil
	}, nil
}

// readERCExport returns the data rows below the header of the export's
// first sheet, each padded or cut to the header width.
func (e *Env) readERCExport(ctx context.Context, path string) ([][]string, error) {
	sess, err := e.Guard.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	sheets := sess.Sheets()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", ErrMalformedData, filepath.Base(path))
	}
	rows, err := sess.Rows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) < ercHeaderRow {
		return nil, fmt.Errorf("%w: %s has no header row", ErrMalformedData, filepath.Base(path))
	}

	width := len(trimTrailingBlank(rows[ercHeaderRow-1]))
	if width == 0 {
		return nil, fmt.Errorf("%w: %s header row is empty", ErrMalformedData, filepath.Base(path))
	}

	data := make([][]string, 0, len(rows)-ercHeaderRow)
	for _, row := range rows[ercHeaderRow:] {
		cells := make([]string, width)
		copy(cells, row)
		data = append(data, cells)
	}
	return data, nil
}

func trimTrailingBlank(row []string) []string {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return row[:n]
}

// prepareInterruptions drops "Totals" rows and rows with any blank cell,
// parses the first column as a date and stable-sorts ascending by it. Rows
// whose date cannot be parsed keep their text and sort last.
func prepareInterruptions(rows [][]string) [][]any {
	type record struct {
		when   time.Time
		dated  bool
		values []any
	}

	var kept []record
	for _, row := range rows {
		if len(row) == 0 || strings.Contains(row[0], "Totals") || hasBlank(row) {
			continue
		}
		rec := record{values: make([]any, len(row))}
		for j, cell := range row {
			rec.values[j] = cellValue(cell)
		}
		if t, ok := parseInterruptionDate(row[0]); ok {
			rec.when, rec.dated = t, true
			rec.values[0] = t
		}
		kept = append(kept, rec)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.dated != b.dated {
			return a.dated
		}
		return a.when.Before(b.when)
	})

	out := make([][]any, len(kept))
	for i, rec := range kept {
		out[i] = rec.values
	}
	return out
}

func hasBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) == "" {
			return true
		}
	}
	return false
}

// cellValue keeps numbers numeric so the destination workbook can compute
// with them.
func cellValue(s string) any {
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return s
}

// parseInterruptionDate accepts month-first text dates and Excel serial
// numbers.
func parseInterruptionDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial <= 0 {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		return t, err == nil
	}
	for _, layout := range interruptionDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
