package app

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"neareports/internal/config"
	"neareports/internal/infrastructure"
	"neareports/internal/ocr"
	"neareports/internal/operations"
	"neareports/internal/reports"
	"neareports/internal/store"
	"neareports/internal/workbook"
)

// taskNames are the dashboard display names of the report steps.
var taskNames = map[string]string{
	"compliance":   "PDC/PGC/PSR Report",
	"interruption": "Interruption Report",
	"supply":       "Supply OCR",
	"ngcp":         "NGCP OCR",
	"distribution": "Distribution Report",
}

// Clock returns the current time in the scheduler's zone. Steps, run logs
// and email subjects all resolve the reporting month from it.
func Clock(cfg *config.Config) (func() time.Time, error) {
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}
	return func() time.Time { return time.Now().In(loc) }, nil
}

// NewPipeline builds the step registry and runner for cfg. tracer and
// metrics may be nil.
func NewPipeline(cfg *config.Config, logger *slog.Logger, tracer trace.Tracer, metrics *infrastructure.ReportMetrics) (*operations.Runner, error) {
	now, err := Clock(cfg)
	if err != nil {
		return nil, err
	}
	regions, err := ocr.LoadRegions(cfg.OCR.RegionsFile)
	if err != nil {
		return nil, fmt.Errorf("load OCR regions: %w", err)
	}

	guard := workbook.NewGuard(cfg.Workbook.AcquireTimeout, logger)
	env := &reports.Env{
		Locator:     workbook.NewLocator(cfg.Paths.NEARoot, cfg.Paths.WorkbookExt, guard, logger),
		Guard:       guard,
		ERCRoot:     cfg.Paths.ERCRoot,
		Renderer:    ocr.NewPopplerRenderer(cfg.OCR.PdftoppmCmd, cfg.OCR.DPI, cfg.OCR.PDFPassword, cfg.OCR.Timeout),
		Extractor:   ocr.NewExtractor(ocr.NewTesseractRecognizer(cfg.OCR.TesseractCmd, cfg.OCR.Timeout), logger, metrics),
		Regions:     regions,
		Concurrency: cfg.OCR.Concurrency,
		Logger:      infrastructure.WithComponent(logger, "reports"),
		Now:         now,
	}

	registry := operations.NewRegistry()
	for _, step := range reports.Steps(env) {
		if err := registry.Register(step); err != nil {
			return nil, fmt.Errorf("register step %s: %w", step.ID(), err)
		}
	}
	return operations.NewRunner(registry, logger, tracer, metrics), nil
}

// TaskSeeds returns one dashboard task per registered step, in pipeline
// order.
func TaskSeeds(registry *operations.Registry) []store.TaskSeed {
	seeds := make([]store.TaskSeed, 0, registry.Count())
	for _, step := range registry.List() {
		name, ok := taskNames[step.ID()]
		if !ok {
			name = step.Name()
		}
		seeds = append(seeds, store.TaskSeed{Name: name, StepID: step.ID()})
	}
	return seeds
}
