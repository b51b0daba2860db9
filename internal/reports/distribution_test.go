package reports

import (
	"context"
	"math"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"neareports/internal/shared/testutil"
	"neareports/internal/workbook"
)

func TestConvertMeasuredPrimary(t *testing.T) {
	got := Convert(100, 50, MeasuredPrimary)

	pc := 100 * math.Sqrt(3) / 1000
	oc := 50 * math.Sqrt(3) / 1000
	assert.InDelta(t, 0.17320508075688773, got.PrimaryPeak, 1e-15)
	assert.InDelta(t, pc, got.PrimaryPeak, 1e-15)
	assert.InDelta(t, oc, got.PrimaryOffPeak, 1e-15)
	assert.InDelta(t, pc/(33500.0/13200.0), got.SecondaryPeak, 1e-15)
	assert.InDelta(t, oc/(33500.0/13200.0), got.SecondaryOffPeak, 1e-15)
	assert.InDelta(t, 0.068248, got.SecondaryPeak, 1e-6)
}

func TestConvertMeasuredSecondary(t *testing.T) {
	got := Convert(100, 50, MeasuredSecondary)

	sp := 100 * math.Sqrt(3) / 1000
	so := 50 * math.Sqrt(3) / 1000
	assert.InDelta(t, sp, got.SecondaryPeak, 1e-15)
	assert.InDelta(t, so, got.SecondaryOffPeak, 1e-15)
	assert.InDelta(t, sp*(67000.0/13200.0), got.PrimaryPeak, 1e-15)
	assert.InDelta(t, so*(67000.0/13200.0), got.PrimaryOffPeak, 1e-15)
	assert.InDelta(t, 0.879146, got.PrimaryPeak, 1e-6)
}

func TestConvertZeroReadings(t *testing.T) {
	assert.Equal(t, Loading{}, Convert(0, 0, MeasuredPrimary))
	assert.Equal(t, Loading{}, Convert(0, 0, MeasuredSecondary))
}

func writeCompleteData(t *testing.T, path string, sheet string, cells map[string]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for cell, v := range cells {
		require.NoError(t, f.SetCellValue(sheet, cell, v))
	}
	require.NoError(t, f.SaveAs(path))
}

func rawFloat(t *testing.T, path, cell string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(testutil.ReadRawCell(t, path, "DistLines,Subs,and PowerQuality", cell), 64)
	require.NoError(t, err, cell)
	return v
}

func TestDistributionWritesAreaRows(t *testing.T) {
	te := newTestEnv(t, &fakeRenderer{}, byMode("", ""))
	te.supportingFile(t, "placeholder")
	// June is row 9.
	writeCompleteData(t, filepath.Join(te.Locator.SupportingDir(june), "COMPLETE DATA 2024.xlsx"), "DATA", map[string]any{
		"BI9": 100, "BJ9": 50,
		"DA9": 100, "DB9": 50,
		"FD9": 200,
		"BI8": 999,
	})

	step := NewDistributionStep(te.Env)
	assert.Equal(t, "Distribution", step.Name())

	paths, err := step.Execute(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	out := paths[0]

	toledo := Convert(100, 50, MeasuredPrimary)
	balamban := Convert(100, 50, MeasuredSecondary)
	pinamungajan := Convert(200, 0, MeasuredPrimary)

	tests := []struct {
		cell string
		want float64
	}{
		{"D70", toledo.PrimaryPeak}, {"E70", toledo.PrimaryOffPeak}, {"F70", toledo.SecondaryPeak}, {"G70", toledo.SecondaryOffPeak},
		{"D71", balamban.PrimaryPeak}, {"E71", balamban.PrimaryOffPeak}, {"F71", balamban.SecondaryPeak}, {"G71", balamban.SecondaryOffPeak},
		// Lutupan shares Toledo's source columns.
		{"D72", toledo.PrimaryPeak}, {"G72", toledo.SecondaryOffPeak},
		// Asturias has no readings.
		{"D73", 0}, {"F73", 0},
		{"D74", pinamungajan.PrimaryPeak}, {"E74", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, rawFloat(t, out, tt.cell), 1e-12, tt.cell)
	}
	assert.Equal(t, "June", testutil.ReadCell(t, out, "DistLines,Subs,and PowerQuality", "C3"))
}

func TestDistributionMissingSourceReturnsEmpty(t *testing.T) {
	te := newTestEnv(t, &fakeRenderer{}, byMode("", ""))

	paths, err := NewDistributionStep(te.Env).Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestDistributionMalformedSource(t *testing.T) {
	tests := []struct {
		name    string
		sheet   string
		cells   map[string]any
		wantErr error
	}{
		{"missing DATA sheet", "Summary", map[string]any{"A1": 1}, workbook.ErrSheetMissing},
		{"text reading", "DATA", map[string]any{"BI9": "n/a"}, ErrMalformedData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEnv(t, &fakeRenderer{}, byMode("", ""))
			te.supportingFile(t, "placeholder")
			writeCompleteData(t, filepath.Join(te.Locator.SupportingDir(june), "COMPLETE DATA 2024.xlsx"), tt.sheet, tt.cells)

			_, err := NewDistributionStep(te.Env).Execute(context.Background(), 1)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStepsOrder(t *testing.T) {
	te := newTestEnv(t, &fakeRenderer{}, byMode("", ""))
	var ids, names []string
	for _, s := range Steps(te.Env) {
		ids = append(ids, s.ID())
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"compliance", "interruption", "supply", "ngcp", "distribution"}, ids)
	assert.Equal(t, []string{"PDC/PGC/PSR", "Interruption", "Supply OCR", "NGCP OCR", "Distribution"}, names)
}
