package workbook

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"neareports/internal/period"
)

// Session is an open workbook holding the engine. Close releases both.
type Session struct {
	file    *excelize.File
	path    string
	release func()
	once    sync.Once
}

// Path returns the workbook location.
func (s *Session) Path() string { return s.path }

// Sheets lists the worksheet names in workbook order.
func (s *Session) Sheets() []string { return s.file.GetSheetList() }

// HasSheet reports whether the workbook has a sheet called name.
func (s *Session) HasSheet(name string) bool {
	idx, err := s.file.GetSheetIndex(name)
	return err == nil && idx >= 0
}

func (s *Session) requireSheet(name string) error {
	if !s.HasSheet(name) {
		return fmt.Errorf("%w: %q in %s", ErrSheetMissing, name, s.path)
	}
	return nil
}

// SetCell writes value into sheet!cell.
func (s *Session) SetCell(sheet, cell string, value any) error {
	if err := s.requireSheet(sheet); err != nil {
		return err
	}
	if err := s.file.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
	}
	return nil
}

// GetCell returns the formatted value of sheet!cell.
func (s *Session) GetCell(sheet, cell string) (string, error) {
	if err := s.requireSheet(sheet); err != nil {
		return "", err
	}
	return s.file.GetCellValue(sheet, cell)
}

// GetFloat returns the numeric value stored in sheet!cell. Blank cells read
// as zero.
func (s *Session) GetFloat(sheet, cell string) (float64, error) {
	if err := s.requireSheet(sheet); err != nil {
		return 0, err
	}
	raw, err := s.file.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("%s!%s is not numeric: %q", sheet, cell, raw)
	}
	return v, nil
}

// Rows returns every row of sheet as unformatted cell values. Trailing empty
// cells of a row are omitted.
func (s *Session) Rows(sheet string) ([][]string, error) {
	if err := s.requireSheet(sheet); err != nil {
		return nil, err
	}
	return s.file.GetRows(sheet, excelize.Options{RawCellValue: true})
}

// ClearRange blanks the contents of every populated cell inside rng (for
// example "B19:G1000"), leaving cell formatting in place.
func (s *Session) ClearRange(sheet, rng string) error {
	if err := s.requireSheet(sheet); err != nil {
		return err
	}
	from, to, ok := strings.Cut(rng, ":")
	if !ok {
		to = from
	}
	c1, r1, err := excelize.CellNameToCoordinates(from)
	if err != nil {
		return err
	}
	c2, r2, err := excelize.CellNameToCoordinates(to)
	if err != nil {
		return err
	}

	rows, err := s.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return err
	}
	for r := r1; r <= r2 && r <= len(rows); r++ {
		row := rows[r-1]
		for c := c1; c <= c2 && c <= len(row); c++ {
			if row[c-1] == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c, r)
			if err != nil {
				return err
			}
			if err := s.file.SetCellDefault(sheet, cell, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

// StampPeriod writes the month name into C3 and the year into C4.
func (s *Session) StampPeriod(sheet string, m period.Month) error {
	if err := s.SetCell(sheet, "C3", m.Name()); err != nil {
		return err
	}
	return s.SetCell(sheet, "C4", m.Year)
}

// Save writes the workbook back to its path.
func (s *Session) Save() error {
	if err := s.file.Save(); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	return nil
}

// Close closes the workbook and releases the engine. It is safe to call more
// than once.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		err = s.file.Close()
		s.release()
	})
	return err
}
