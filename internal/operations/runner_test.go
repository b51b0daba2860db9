package operations

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"neareports/internal/reports"
	"neareports/internal/shared/testutil"
)

func newRunner(t *testing.T, steps ...Step) (*Runner, *testutil.BufferedSlogHandler, *tracetest.SpanRecorder) {
	t.Helper()
	registry := NewRegistry()
	for _, s := range steps {
		require.NoError(t, registry.Register(s))
	}
	logger, logs := testutil.NewTestLogger(t)
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewRunner(registry, logger, tp.Tracer(TracerName), nil), logs, recorder
}

func TestRunOneSuccess(t *testing.T) {
	step := &stubStep{id: "compliance", name: "PDC/PGC/PSR", paths: []string{"/r/2024/06/PDC.xlsx", "/r/2024/06/PGC.xlsx"}}
	runner, _, recorder := newRunner(t, step)

	out := runner.RunOne(context.Background(), "compliance", 1)

	assert.Equal(t, StatusSuccess, out.Status)
	assert.True(t, out.Succeeded())
	assert.Equal(t, "Generated: PDC.xlsx, PGC.xlsx", out.Message)
	assert.Equal(t, step.paths, out.Artifacts)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "operations.step.compliance", spans[0].Name())
}

func TestRunOneNoArtifactsIsSuccess(t *testing.T) {
	runner, _, _ := newRunner(t, &stubStep{id: "ngcp", name: "NGCP OCR"})

	out := runner.RunOne(context.Background(), "ngcp", 1)

	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, NoArtifactsMessage, out.Message)
	assert.Equal(t, []string{}, out.Artifacts)
}

func TestRunOneClassifiesFailure(t *testing.T) {
	step := &stubStep{id: "interruption", name: "Interruption", err: reports.ErrMalformedData}
	runner, logs, _ := newRunner(t, step)

	out := runner.RunOne(context.Background(), "interruption", 1)

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, "Error: One of the data sheets was empty or malformed.", out.Message)
	assert.Empty(t, out.Artifacts)
	testutil.AssertLogContains(t, logs, slog.LevelError, "step_failed")
}

func TestRunOneUnknownStep(t *testing.T) {
	runner, _, _ := newRunner(t)

	out := runner.RunOne(context.Background(), "nope", 1)

	assert.Equal(t, StatusFailed, out.Status)
	assert.Contains(t, out.Message, "nope")
}

func TestRunAllAggregatesInOrder(t *testing.T) {
	runner, _, _ := newRunner(t,
		&stubStep{id: "a", name: "A", paths: []string{"a1", "a2"}},
		&stubStep{id: "b", name: "B"},
		&stubStep{id: "c", name: "C", paths: []string{"c1"}},
	)

	paths, err := runner.RunAll(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "c1"}, paths)
}

func TestRunAllStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("tesseract exited with status 1")
	compliance := &stubStep{id: "compliance", name: "PDC/PGC/PSR", paths: []string{"pdc", "pgc", "psr"}}
	interruption := &stubStep{id: "interruption", name: "Interruption", paths: []string{"int"}}
	supply := &stubStep{id: "supply", name: "Supply OCR", err: boom}
	ngcp := &stubStep{id: "ngcp", name: "NGCP OCR", paths: []string{"ngcp"}}
	distribution := &stubStep{id: "distribution", name: "Distribution", paths: []string{"dist"}}
	runner, logs, recorder := newRunner(t, compliance, interruption, supply, ngcp, distribution)

	paths, err := runner.RunAll(context.Background(), 1)

	assert.Nil(t, paths)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "Supply OCR", stepErr.StepName)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 1, compliance.Calls())
	assert.Equal(t, 1, interruption.Calls())
	assert.Equal(t, 0, ngcp.Calls())
	assert.Equal(t, 0, distribution.Calls())

	testutil.AssertLogContains(t, logs, slog.LevelError, "run_all_stopped")
	// Three step spans plus the run_all span.
	assert.Len(t, recorder.Ended(), 4)
}

// overlapStep records the highest number of steps seen executing at once.
type overlapStep struct {
	id     string
	active *atomic.Int32
	peak   *atomic.Int32
}

func (s *overlapStep) ID() string   { return s.id }
func (s *overlapStep) Name() string { return s.id }

func (s *overlapStep) Execute(context.Context, int) ([]string, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return []string{s.id + ".xlsx"}, nil
}

func TestStepsNeverOverlap(t *testing.T) {
	var active, peak atomic.Int32
	ids := []string{"compliance", "interruption", "supply", "ngcp", "distribution"}
	steps := make([]Step, len(ids))
	for i, id := range ids {
		steps[i] = &overlapStep{id: id, active: &active, peak: &peak}
	}
	runner, _, _ := newRunner(t, steps...)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			out := runner.RunOne(context.Background(), id, 1)
			assert.Equal(t, StatusSuccess, out.Status)
		}(id)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		paths, err := runner.RunAll(context.Background(), 1)
		assert.NoError(t, err)
		assert.Len(t, paths, len(ids))
	}()
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

func TestStepWaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	slow := &blockingStep{id: "supply", started: started, release: release}
	runner, _, _ := newRunner(t, slow, &stubStep{id: "ngcp", name: "NGCP OCR"})

	done := make(chan Outcome, 1)
	go func() { done <- runner.RunOne(context.Background(), "supply", 1) }()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out := runner.RunOne(ctx, "ngcp", 1)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Contains(t, out.Message, "Excel could not start")

	close(release)
	assert.Equal(t, StatusSuccess, (<-done).Status)
}

type blockingStep struct {
	id      string
	started chan struct{}
	release chan struct{}
}

func (s *blockingStep) ID() string   { return s.id }
func (s *blockingStep) Name() string { return s.id }

func (s *blockingStep) Execute(context.Context, int) ([]string, error) {
	close(s.started)
	<-s.release
	return nil, nil
}

func TestGeneratedMessage(t *testing.T) {
	assert.Equal(t, NoArtifactsMessage, GeneratedMessage(nil))
	assert.Equal(t, "Generated: x.xlsx", GeneratedMessage([]string{"/a/b/x.xlsx"}))
}
