package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neareports/internal/config"
	"neareports/internal/period"
	"neareports/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.NEARoot = t.TempDir()
	cfg.Paths.ERCRoot = t.TempDir()
	cfg.Paths.DatabasePath = filepath.Join(t.TempDir(), "dashboard.sqlite")
	cfg.Scheduler.Timezone = "UTC"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTaskSeedsFollowPipelineOrder(t *testing.T) {
	runner, err := NewPipeline(testConfig(t), quietLogger(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []store.TaskSeed{
		{Name: "PDC/PGC/PSR Report", StepID: "compliance"},
		{Name: "Interruption Report", StepID: "interruption"},
		{Name: "Supply OCR", StepID: "supply"},
		{Name: "NGCP OCR", StepID: "ngcp"},
		{Name: "Distribution Report", StepID: "distribution"},
	}, TaskSeeds(runner.Registry()))
}

func TestClockUsesSchedulerZone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Timezone = "Asia/Manila"

	now, err := Clock(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Manila", now().Location().String())

	// 01:00 on 1 July in Manila is still 30 June in UTC.
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	instant := time.Date(2024, time.June, 30, 17, 0, 0, 0, time.UTC)
	assert.Equal(t, period.Month{Year: 2024, Month: time.June}, period.Resolve(instant.In(manila), 1))
	assert.Equal(t, period.Month{Year: 2024, Month: time.May}, period.Resolve(instant, 1))

	cfg.Scheduler.Timezone = "Nowhere/Atlantis"
	_, err = Clock(cfg)
	assert.Error(t, err)
}

func TestNewPipelineRejectsMissingRegionsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.OCR.RegionsFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewPipeline(cfg, quietLogger(), nil, nil)
	assert.Error(t, err)
}

func TestSeedIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	require.NoError(t, InitDB(ctx, cfg))
	for i := 0; i < 2; i++ {
		n, err := Seed(ctx, cfg, quietLogger())
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	}

	st, err := store.Open(ctx, cfg.Paths.DatabasePath)
	require.NoError(t, err)
	defer st.Close()
	tasks, err := st.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 5)
}

func TestApplicationServesSeededTasks(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := NewApplication(ctx, cfg, quietLogger())
	require.NoError(t, err)
	go a.WebSocketHub.Run()
	t.Cleanup(func() { assert.NoError(t, a.Stop(context.Background())) })

	require.NotNil(t, a.Scheduler)
	assert.Len(t, a.Scheduler.Entries(), 0, "scheduler is not started yet")

	rec := httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tasks []store.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tasks, 5)
	assert.Equal(t, "Distribution Report", body.Tasks[0].Name)

	rec = httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplicationRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)

	a, err := NewApplication(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	url := "http://" + a.Server.Addr + "/api/tasks"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	assert.Len(t, a.Scheduler.Entries(), 5)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
