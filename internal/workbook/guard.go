package workbook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"neareports/internal/files"
)

// ErrUnavailable reports that the spreadsheet engine could not be acquired
// in time or could not load a workbook.
var ErrUnavailable = errors.New("spreadsheet engine unavailable")

// ErrSheetMissing reports a worksheet absent from a workbook.
var ErrSheetMissing = errors.New("worksheet not found")

// DefaultAcquireTimeout bounds how long Open waits for another holder.
const DefaultAcquireTimeout = 5 * time.Minute

// Guard serializes use of the spreadsheet engine. At most one Session is
// open at a time across all goroutines sharing the Guard.
type Guard struct {
	sem     chan struct{}
	timeout time.Duration
	logger  *slog.Logger
}

// NewGuard creates a guard that waits at most timeout to acquire the engine.
func NewGuard(timeout time.Duration, logger *slog.Logger) *Guard {
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		sem:     make(chan struct{}, 1),
		timeout: timeout,
		logger:  logger.With(slog.String("component", "workbook_guard")),
	}
}

func (g *Guard) acquire(ctx context.Context) error {
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case g.sem <- struct{}{}:
		return nil
	case <-timer.C:
		g.logger.WarnContext(ctx, "engine_acquire_timeout", slog.Duration("timeout", g.timeout))
		return fmt.Errorf("%w: timed out after %s", ErrUnavailable, g.timeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
}

func (g *Guard) release() {
	<-g.sem
}

// Open acquires the engine and loads the workbook at path. The returned
// Session must be closed to release the engine. A missing file is reported
// as an fs.ErrNotExist error; a file the engine cannot parse as
// ErrUnavailable.
func (g *Guard) Open(ctx context.Context, path string) (*Session, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if err := g.acquire(ctx); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		g.release()
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
	}
	return &Session{file: f, path: path, release: g.release}, nil
}

// Create writes a fresh workbook at path whose sheets are named sheets, in
// order.
func (g *Guard) Create(ctx context.Context, path string, sheets []string) error {
	if len(sheets) == 0 {
		return fmt.Errorf("create %s: no sheets", path)
	}
	if err := g.acquire(ctx); err != nil {
		return err
	}
	defer g.release()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheets[0]); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	for _, name := range sheets[1:] {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrUnavailable, path, err)
	}
	return nil
}

// Copy replaces dst with a byte-for-byte copy of src while holding the
// engine, so no open Session sees its file swapped underneath it.
func (g *Guard) Copy(ctx context.Context, src, dst string) error {
	if err := g.acquire(ctx); err != nil {
		return err
	}
	defer g.release()
	return files.CopyFile(src, dst)
}
