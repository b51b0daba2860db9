package ocr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegions(t *testing.T) {
	rs, err := DefaultRegions()
	require.NoError(t, err)

	assert.Len(t, rs.For("supply"), 5)
	assert.Len(t, rs.For("ngcp"), 10)

	r, ok := rs.Lookup("supply", "energy_total")
	require.True(t, ok)
	assert.Equal(t, Region{Field: "energy_total", Page: 1, Box: Box{4193, 3837, 4783, 4033}, Mode: ModeSum, Cell: "H12"}, r)

	r, ok = rs.Lookup("ngcp", "total_taxes")
	require.True(t, ok)
	assert.Equal(t, 2, r.Page)
	assert.Equal(t, "C25", r.Cell)

	cells := map[string]bool{}
	for _, r := range rs.For("ngcp") {
		assert.Equal(t, ModeText, r.Mode)
		assert.False(t, cells[r.Cell], "duplicate cell %s", r.Cell)
		cells[r.Cell] = true
	}

	_, ok = rs.Lookup("ngcp", "unknown")
	assert.False(t, ok)
}

func TestLoadRegionsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ngcp:
  - field: statement_date
    page: 0
    box: [10, 20, 30, 40]
    mode: text
    cell: C11
`), 0644))

	rs, err := LoadRegions(path)
	require.NoError(t, err)
	r, ok := rs.Lookup("ngcp", "statement_date")
	require.True(t, ok)
	assert.Equal(t, Box{10, 20, 30, 40}, r.Box)
}

func TestLoadRegionsRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad mode":    "x:\n  - {field: a, page: 0, box: [0,0,1,1], mode: fuzzy, cell: A1}\n",
		"empty box":   "x:\n  - {field: a, page: 0, box: [5,5,5,9], mode: text, cell: A1}\n",
		"short box":   "x:\n  - {field: a, page: 0, box: [1,2,3], mode: text, cell: A1}\n",
		"duplicate":   "x:\n  - {field: a, page: 0, box: [0,0,1,1], mode: text, cell: A1}\n  - {field: a, page: 0, box: [0,0,1,1], mode: text, cell: A2}\n",
		"negative pg": "x:\n  - {field: a, page: -1, box: [0,0,1,1], mode: text, cell: A1}\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "regions.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := LoadRegions(path)
			assert.Error(t, err)
		})
	}
}

func TestRenderedPagesOrdering(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-10.png", "page-2.png", "page-1.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	names, err := renderedPages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"page-1.png", "page-2.png", "page-10.png"}, names)
}

func TestPopplerArgs(t *testing.T) {
	p := NewPopplerRenderer("", 0, "secret", 0)
	assert.Equal(t,
		[]string{"-r", "600", "-png", "-f", "2", "-l", "2", "-upw", "secret", "in.pdf", "out/page"},
		p.args("in.pdf", "out/page", PageRange{First: 2, Last: 2}))
	assert.Equal(t,
		[]string{"-r", "600", "-png", "in.pdf", "out/page"},
		NewPopplerRenderer("pdftoppm", 600, "", 0).args("in.pdf", "out/page", PageRange{}))
}

func TestTesseractArgs(t *testing.T) {
	assert.Equal(t, []string{"stdin", "stdout", "--psm", "7"}, tesseractArgs(Options{}))
	assert.Equal(t,
		[]string{"stdin", "stdout", "--psm", "6", "-c", "tessedit_char_whitelist=0123456789.,"},
		tesseractArgs(Options{PSM: 6, Whitelist: SumWhitelist}))
}
