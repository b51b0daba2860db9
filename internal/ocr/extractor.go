package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"neareports/internal/infrastructure"
)

// PageMissing is written in place of a text field whose page was not
// rendered.
const PageMissing = "[PAGE MISSING]"

// SumWhitelist restricts sum-mode recognition to digits and separators.
const SumWhitelist = "0123456789.,"

// Extractor reads regions of rendered documents.
type Extractor struct {
	rec     Recognizer
	logger  *slog.Logger
	metrics *infrastructure.ReportMetrics
}

// NewExtractor creates an extractor backed by rec. metrics may be nil.
func NewExtractor(rec Recognizer, logger *slog.Logger, metrics *infrastructure.ReportMetrics) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		rec:     rec,
		logger:  logger.With(slog.String("component", "ocr")),
		metrics: metrics,
	}
}

// Text recognizes r as a single line. A page beyond the document yields
// PageMissing without running the recognizer.
func (e *Extractor) Text(ctx context.Context, doc *Document, r Region) (string, error) {
	img, ok := doc.Page(r.Page)
	if !ok {
		e.logger.WarnContext(ctx, "ocr_page_missing",
			slog.String("field", r.Field),
			slog.Int("page", r.Page),
			slog.Int("rendered_pages", doc.Len()))
		e.metrics.RecordOCRRegion(ctx, "page_missing")
		return PageMissing, nil
	}

	raw, err := e.rec.Recognize(ctx, Preprocess(img, r.Box), Options{PSM: 7})
	if err != nil {
		e.metrics.RecordOCRRegion(ctx, "failed")
		return "", fmt.Errorf("recognize %s: %w", r.Field, err)
	}
	e.metrics.RecordOCRRegion(ctx, "ok")

	text := strings.TrimSpace(raw)
	e.logger.DebugContext(ctx, "ocr_region_read", slog.String("field", r.Field), slog.String("text", text))
	return text, nil
}

// Sum recognizes r as a block of numbers and returns their exact sum. ok is
// false when r's page was not rendered; the recognizer is not run then.
func (e *Extractor) Sum(ctx context.Context, doc *Document, r Region) (sum decimal.Decimal, ok bool, err error) {
	img, ok := doc.Page(r.Page)
	if !ok {
		e.logger.WarnContext(ctx, "ocr_page_missing",
			slog.String("field", r.Field),
			slog.Int("page", r.Page),
			slog.Int("rendered_pages", doc.Len()))
		e.metrics.RecordOCRRegion(ctx, "page_missing")
		return decimal.Zero, false, nil
	}

	raw, err := e.rec.Recognize(ctx, Preprocess(img, r.Box), Options{PSM: 6, Whitelist: SumWhitelist})
	if err != nil {
		e.metrics.RecordOCRRegion(ctx, "failed")
		return decimal.Zero, true, fmt.Errorf("recognize %s: %w", r.Field, err)
	}

	sum, err = ParseSum(raw)
	if err != nil {
		e.metrics.RecordOCRRegion(ctx, "failed")
		return decimal.Zero, true, fmt.Errorf("%s: %w", r.Field, err)
	}
	e.metrics.RecordOCRRegion(ctx, "ok")
	e.logger.DebugContext(ctx, "ocr_region_summed", slog.String("field", r.Field), slog.String("sum", FormatSum(sum)))
	return sum, true, nil
}

// ParseSum adds up the numbers in raw, one per line. Thousands separators
// are removed and blank lines skipped; any other unparseable line is an
// error.
func ParseSum(raw string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(line, ",", ""))
		if err != nil {
			return decimal.Zero, fmt.Errorf("cannot parse %q as a number", line)
		}
		sum = sum.Add(d)
	}
	return sum, nil
}

// FormatSum renders d with the scale it was parsed at, so "1,234.50" and
// "65.00" total "1299.50".
func FormatSum(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}
