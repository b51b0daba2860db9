package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"neareports/internal/config"
	"neareports/internal/shared/testutil"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthCheckDegradesOnFailedChecks(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	paths := config.PathsConfig{NEARoot: t.TempDir(), ERCRoot: t.TempDir()}
	ocr := config.OCRConfig{TesseractCmd: "definitely-not-installed-tesseract", PdftoppmCmd: "definitely-not-installed-pdftoppm"}

	hs := NewHealthService("1.0.0", paths, ocr, pingFunc(func(context.Context) error {
		return errors.New("database is locked")
	}), nil, logger)

	status := hs.HealthCheck(context.Background())
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "1.0.0", status.Version)
	assert.Equal(t, "ok", status.Checks["nea_root"].Status)
	assert.Equal(t, "ok", status.Checks["erc_root"].Status)
	assert.Equal(t, "error", status.Checks["tesseract"].Status)
	assert.Equal(t, "database is locked", status.Checks["database"].Message)
}

func TestHealthCheckMissingRoot(t *testing.T) {
	paths := config.PathsConfig{NEARoot: "/nonexistent/nea", ERCRoot: t.TempDir()}
	hs := NewHealthService("dev", paths, config.OCRConfig{}, nil, nil, nil)

	status := hs.HealthCheck(context.Background())
	assert.Equal(t, "error", status.Checks["nea_root"].Status)
	_, hasDB := status.Checks["database"]
	assert.False(t, hasDB)
}
