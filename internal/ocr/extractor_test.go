package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRecognizer struct {
	mock.Mock
}

func (m *mockRecognizer) Recognize(ctx context.Context, img image.Image, opts Options) (string, error) {
	args := m.Called(ctx, img, opts)
	return args.String(0), args.Error(1)
}

func page() image.Image {
	return solid(50, 50, color.White)
}

func TestParseSum(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"two lines with separators", "1,234.50\n65.00\n", "1299.5", false},
		{"blank lines skipped", "\n 10 \n\n0.25\n", "10.25", false},
		{"empty is zero", "", "0", false},
		{"exact decimal addition", "0.1\n0.2", "0.3", false},
		{"garbage line", "12\nabc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSum(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseSumExactValue(t *testing.T) {
	got, err := ParseSum("1,234.50\n65.00")
	require.NoError(t, err)
	assert.Equal(t, "1299.5", got.String())
	assert.True(t, got.Equal(decimal.RequireFromString("1299.50")))
}

func TestExtractorText(t *testing.T) {
	rec := &mockRecognizer{}
	rec.On("Recognize", mock.Anything, mock.Anything, Options{PSM: 7}).Return("  BR-2024-06 \n", nil)

	e := NewExtractor(rec, nil, nil)
	doc := &Document{Pages: []image.Image{page()}}

	got, err := e.Text(context.Background(), doc, Region{Field: "ref", Page: 0, Box: Box{0, 0, 10, 10}, Mode: ModeText})
	require.NoError(t, err)
	assert.Equal(t, "BR-2024-06", got)
	rec.AssertExpectations(t)
}

func TestExtractorTextPageMissing(t *testing.T) {
	rec := &mockRecognizer{}
	e := NewExtractor(rec, nil, nil)
	doc := &Document{Pages: []image.Image{page(), page()}}

	got, err := e.Text(context.Background(), doc, Region{Field: "total_taxes", Page: 2, Box: Box{0, 0, 10, 10}})
	require.NoError(t, err)
	assert.Equal(t, PageMissing, got)
	rec.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything, mock.Anything)
}

func TestExtractorSum(t *testing.T) {
	rec := &mockRecognizer{}
	rec.On("Recognize", mock.Anything, mock.Anything, Options{PSM: 6, Whitelist: SumWhitelist}).Return("1,234.50\n65.00\n", nil)

	e := NewExtractor(rec, nil, nil)
	// Only page 2 rendered.
	doc := &Document{Pages: []image.Image{page()}, First: 1}

	got, ok, err := e.Sum(context.Background(), doc, Region{Field: "energy_total", Page: 1, Box: Box{0, 0, 10, 10}, Mode: ModeSum})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1299.50", FormatSum(got))
	rec.AssertNumberOfCalls(t, "Recognize", 1)
}

func TestExtractorSumPageMissing(t *testing.T) {
	rec := &mockRecognizer{}
	e := NewExtractor(rec, nil, nil)
	doc := &Document{Pages: []image.Image{page()}}

	got, ok, err := e.Sum(context.Background(), doc, Region{Field: "energy_total", Page: 3, Box: Box{0, 0, 10, 10}, Mode: ModeSum})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, got.IsZero())
	rec.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything, mock.Anything)
}

func TestFormatSumKeepsScale(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1,234.50\n65.00", "1299.50"},
		{"10\n20", "30"},
		{"0.10\n0.2", "0.30"},
		{"", "0"},
	}
	for _, tt := range tests {
		sum, err := ParseSum(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, FormatSum(sum), tt.raw)
	}
}

func TestExtractorPropagatesRecognizerError(t *testing.T) {
	rec := &mockRecognizer{}
	boom := errors.New("tesseract crashed")
	rec.On("Recognize", mock.Anything, mock.Anything, mock.Anything).Return("", boom)

	e := NewExtractor(rec, nil, nil)
	doc := &Document{Pages: []image.Image{page()}}

	_, err := e.Text(context.Background(), doc, Region{Field: "x", Box: Box{0, 0, 5, 5}})
	assert.ErrorIs(t, err, boom)
}

func TestDocumentPage(t *testing.T) {
	doc := &Document{Pages: []image.Image{page()}, First: 1}
	_, ok := doc.Page(0)
	assert.False(t, ok)
	_, ok = doc.Page(1)
	assert.True(t, ok)
	_, ok = doc.Page(2)
	assert.False(t, ok)

	var none *Document
	_, ok = none.Page(0)
	assert.False(t, ok)
	assert.Zero(t, none.Len())
}
