package workbook

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"neareports/internal/files"
	"neareports/internal/period"
)

// SupportingDirName is the per-month folder holding scanned bills and
// source spreadsheets.
const SupportingDirName = "SUPPORTING DOCS"

// Paths is the pair of workbook locations for a month and its predecessor.
type Paths struct {
	Current  string
	Previous string
}

// Derivation records how Derive produced the current workbook.
type Derivation int

const (
	// Copied means the previous month's workbook was copied byte for byte.
	Copied Derivation = iota
	// Created means no previous workbook existed and a fresh one was made.
	Created
)

func (d Derivation) String() string {
	if d == Copied {
		return "copied"
	}
	return "created"
}

// Locator computes workbook paths under Root. Ext is the workbook file
// extension including the dot.
type Locator struct {
	Root   string
	Ext    string
	guard  *Guard
	logger *slog.Logger
}

// NewLocator creates a locator. Derive copies and creates workbooks while
// holding guard.
func NewLocator(root, ext string, guard *Guard, logger *slog.Logger) *Locator {
	if ext == "" {
		ext = ".xlsx"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{
		Root:   root,
		Ext:    ext,
		guard:  guard,
		logger: logger.With(slog.String("component", "workbook_locator")),
	}
}

// MonthDir returns root/{YYYY}/{MM. MON YYYY}.
func (l *Locator) MonthDir(m period.Month) string {
	return filepath.Join(l.Root, strconv.Itoa(m.Year), m.FolderName())
}

// SupportingDir returns the month's SUPPORTING DOCS folder.
func (l *Locator) SupportingDir(m period.Month) string {
	return filepath.Join(l.MonthDir(m), SupportingDirName)
}

// FileName returns the kind's workbook file name for m.
func (l *Locator) FileName(kind Kind, m period.Month) string {
	return kind.Prefix + m.Stamp() + l.Ext
}

// Paths returns the current and previous month locations for kind.
func (l *Locator) Paths(kind Kind, m period.Month) Paths {
	prev := m.Previous()
	return Paths{
		Current:  filepath.Join(l.MonthDir(m), l.FileName(kind, m)),
		Previous: filepath.Join(l.MonthDir(prev), l.FileName(kind, prev)),
	}
}

// Derive makes sure a writable workbook exists at Paths.Current. The month
// directory is created; the previous month's workbook is copied when
// present, otherwise a fresh workbook with the kind's sheets is created.
func (l *Locator) Derive(ctx context.Context, kind Kind, m period.Month) (Paths, Derivation, error) {
	p := l.Paths(kind, m)
	if err := ctx.Err(); err != nil {
		return p, Created, err
	}

	if err := os.MkdirAll(filepath.Dir(p.Current), 0755); err != nil {
		return p, Created, fmt.Errorf("create month directory: %w", err)
	}

	if files.Exists(p.Previous) {
		if err := l.guard.Copy(ctx, p.Previous, p.Current); err != nil {
			return p, Copied, fmt.Errorf("copy %s: %w", filepath.Base(p.Previous), err)
		}
		l.logger.InfoContext(ctx, "workbook_derived",
			slog.String("kind", kind.Name),
			slog.String("path", p.Current),
			slog.String("from", p.Previous))
		return p, Copied, nil
	}

	if err := l.guard.Create(ctx, p.Current, kind.Sheets); err != nil {
		return p, Created, err
	}
	l.logger.InfoContext(ctx, "workbook_created",
		slog.String("kind", kind.Name),
		slog.String("path", p.Current))
	return p, Created, nil
}
