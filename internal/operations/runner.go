package operations

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"neareports/internal/infrastructure"
	"neareports/internal/workbook"
)

// TracerName names the tracer used for step spans.
const TracerName = "neareports.operations"

// NoArtifactsMessage is the success message when a step wrote nothing.
const NoArtifactsMessage = "No files were generated (check templates or source files)."

// Runner executes registered steps. Steps run one at a time across every
// caller sharing the Runner.
type Runner struct {
	registry *Registry
	running  chan struct{}
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *infrastructure.ReportMetrics
}

// NewRunner creates a runner over registry. A nil tracer uses the global
// provider; nil metrics disables recording.
func NewRunner(registry *Registry, logger *slog.Logger, tracer trace.Tracer, metrics *infrastructure.ReportMetrics) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return &Runner{
		registry: registry,
		running:  make(chan struct{}, 1),
		logger:   infrastructure.WithComponent(logger, "runner"),
		tracer:   tracer,
		metrics:  metrics,
	}
}

// Registry returns the runner's step registry.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// RunOne executes a single step and classifies the result. It never
// returns an error: failures become a FAILED outcome.
func (r *Runner) RunOne(ctx context.Context, stepID string, offset int) Outcome {
	step, err := r.registry.Get(stepID)
	if err != nil {
		r.logger.WarnContext(ctx, "step_not_registered", slog.String("step_id", stepID))
		return Outcome{Status: StatusFailed, Message: "Unexpected error: " + err.Error(), Artifacts: []string{}}
	}

	paths, err := r.execute(ctx, step, offset)
	if err != nil {
		kind, msg := Classify(err)
		r.logger.ErrorContext(ctx, "step_failed",
			slog.String("step_id", stepID),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		return Outcome{Status: StatusFailed, Message: msg, Artifacts: []string{}}
	}

	return Outcome{Status: StatusSuccess, Message: GeneratedMessage(paths), Artifacts: paths}
}

// RunAll executes every step in registration order, stopping at the first
// failure. On failure no artifacts are returned.
func (r *Runner) RunAll(ctx context.Context, offset int) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "operations.run_all",
		trace.WithAttributes(attribute.Int("offset", offset)))
	defer span.End()

	all := []string{}
	for _, step := range r.registry.List() {
		paths, err := r.execute(ctx, step, offset)
		if err != nil {
			stepErr := &StepError{StepID: step.ID(), StepName: step.Name(), Cause: err}
			span.RecordError(stepErr)
			span.SetStatus(codes.Error, stepErr.Error())
			r.logger.ErrorContext(ctx, "run_all_stopped",
				slog.String("step", step.Name()),
				slog.String("error", err.Error()))
			return nil, stepErr
		}
		all = append(all, paths...)
	}

	span.SetAttributes(attribute.Int("artifacts", len(all)))
	r.logger.InfoContext(ctx, "run_all_completed", slog.Int("artifacts", len(all)))
	return all, nil
}

func (r *Runner) execute(ctx context.Context, step Step, offset int) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "operations.step."+step.ID(),
		trace.WithAttributes(
			attribute.String("step.id", step.ID()),
			attribute.String("step.name", step.Name()),
			attribute.Int("offset", offset),
		))
	defer span.End()

	log := r.logger.With(slog.String("step_id", step.ID()), slog.Int("offset", offset))

	select {
	case r.running <- struct{}{}:
	case <-ctx.Done():
		err := fmt.Errorf("%w: waiting for running step: %v", workbook.ErrUnavailable, ctx.Err())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer func() { <-r.running }()

	log.InfoContext(ctx, "step_started")

	start := time.Now()
	paths, err := step.Execute(ctx, offset)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.RecordStep(ctx, step.ID(), duration, string(StatusFailed))
		return nil, err
	}
	if paths == nil {
		paths = []string{}
	}

	span.SetAttributes(attribute.Int("step.artifacts", len(paths)))
	r.metrics.RecordStep(ctx, step.ID(), duration, string(StatusSuccess))
	log.InfoContext(ctx, "step_completed",
		slog.Int("artifacts", len(paths)),
		slog.Duration("duration", duration))
	return paths, nil
}

// GeneratedMessage summarizes artifact paths by file name.
func GeneratedMessage(paths []string) string {
	if len(paths) == 0 {
		return NoArtifactsMessage
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return "Generated: " + strings.Join(names, ", ")
}
