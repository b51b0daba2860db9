package reports

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"neareports/internal/ocr"
	"neareports/internal/period"
	"neareports/internal/workbook"
)

// ErrMalformedData reports a source sheet that is empty or not shaped as
// expected.
var ErrMalformedData = errors.New("data sheet empty or malformed")

// Env carries the collaborators shared by every step.
type Env struct {
	Locator *workbook.Locator
	Guard   *workbook.Guard
	// ERCRoot holds the yearly "{YYYY} POWER INTERRUPTIONS" folders.
	ERCRoot   string
	Renderer  ocr.Renderer
	Extractor *ocr.Extractor
	Regions   ocr.Regions
	// Concurrency bounds parallel OCR within one document.
	Concurrency int
	Logger      *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (e *Env) month(offset int) period.Month {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	return period.Resolve(now(), offset)
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// fillFunc writes gathered values into an open destination workbook.
type fillFunc func(ctx context.Context, sess *workbook.Session) error

// gatherFunc collects source values for m. Returning a nil fillFunc with a
// nil error means a core source is missing and the step produces nothing.
type gatherFunc func(ctx context.Context, m period.Month) (fillFunc, error)

// job is one workbook produced by a step.
type job struct {
	kind       workbook.Kind
	stampSheet string
	gather     gatherFunc
}

// run executes the shared step template for one workbook.
func (e *Env) run(ctx context.Context, m period.Month, j job) ([]string, error) {
	log := e.logger().With(slog.String("kind", j.kind.Name), slog.String("month", m.String()))

	paths, how, err := e.Locator.Derive(ctx, j.kind, m)
	if err != nil {
		return nil, err
	}
	log.DebugContext(ctx, "workbook_ready", slog.String("path", paths.Current), slog.String("derivation", how.String()))

	var fill fillFunc = noFill
	if j.gather != nil {
		fill, err = j.gather(ctx, m)
		if err != nil {
			return nil, err
		}
		if fill == nil {
			log.InfoContext(ctx, "step_skipped_missing_source")
			return []string{}, nil
		}
	}

	sess, err := e.Guard.Open(ctx, paths.Current)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	stamp := j.stampSheet
	if stamp == "" {
		stamp = j.kind.Sheet()
	}
	if err := sess.StampPeriod(stamp, m); err != nil {
		return nil, err
	}
	if err := fill(ctx, sess); err != nil {
		return nil, err
	}
	if err := sess.Save(); err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "workbook_written", slog.String("path", paths.Current))
	return []string{paths.Current}, nil
}

func noFill(context.Context, *workbook.Session) error { return nil }

// Step is a named report step. It satisfies operations.Step.
type Step struct {
	id, name string
	exec     func(ctx context.Context, offset int) ([]string, error)
}

func (s *Step) ID() string   { return s.id }
func (s *Step) Name() string { return s.name }

// Execute runs the step for the month offset months back.
func (s *Step) Execute(ctx context.Context, offset int) ([]string, error) {
	return s.exec(ctx, offset)
}

// Steps returns every report step in pipeline order.
func Steps(e *Env) []*Step {
	return []*Step{
		NewComplianceStep(e),
		NewInterruptionStep(e),
		NewSupplyStep(e),
		NewNGCPStep(e),
		NewDistributionStep(e),
	}
}
