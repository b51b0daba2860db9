package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Sheet describes one worksheet of a fixture workbook. Rows start at Origin
// (default "A1").
type Sheet struct {
	Name   string
	Origin string
	Rows   [][]any
}

// WriteWorkbook creates an .xlsx file at path containing sheets in order.
func WriteWorkbook(t *testing.T, path string, sheets ...Sheet) {
	t.Helper()
	require.NotEmpty(t, sheets)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), sh.Name))
		} else {
			_, err := f.NewSheet(sh.Name)
			require.NoError(t, err)
		}
		origin := sh.Origin
		if origin == "" {
			origin = "A1"
		}
		col, row, err := excelize.CellNameToCoordinates(origin)
		require.NoError(t, err)
		for r, values := range sh.Rows {
			cell, err := excelize.CoordinatesToCellName(col, row+r)
			require.NoError(t, err)
			vals := values
			require.NoError(t, f.SetSheetRow(sh.Name, cell, &vals))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

// ReadCell returns the formatted value of one cell in an existing workbook.
func ReadCell(t *testing.T, path, sheet, cell string) string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(sheet, cell)
	require.NoError(t, err)
	return v
}

// ReadRawCell returns the unformatted stored value of one cell.
func ReadRawCell(t *testing.T, path, sheet, cell string) string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return v
}
