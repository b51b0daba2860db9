package services

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"

	"neareports/internal/config"
)

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClientCounter reports connected live clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	paths     config.PathsConfig
	ocr       config.OCRConfig
	db        Pinger
	clients   ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Checks    map[string]ServiceHealth `json:"checks"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
}

// ServiceHealth represents individual dependency health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. db and clients may be nil.
func NewHealthService(version string, paths config.PathsConfig, ocr config.OCRConfig, db Pinger, clients ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		paths:     paths,
		ocr:       ocr,
		db:        db,
		clients:   clients,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck reports "ok" when every check passes and "degraded" otherwise.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	checks := map[string]ServiceHealth{
		"nea_root":  dirCheck(hs.paths.NEARoot),
		"erc_root":  dirCheck(hs.paths.ERCRoot),
		"tesseract": toolCheck(hs.ocr.TesseractCmd),
		"pdftoppm":  toolCheck(hs.ocr.PdftoppmCmd),
	}
	if hs.db != nil {
		checks["database"] = ok()
		if err := hs.db.Ping(ctx); err != nil {
			checks["database"] = failed(err.Error())
		}
	}

	status := "ok"
	for name, c := range checks {
		if c.Status != "ok" {
			status = "degraded"
			hs.logger.WarnContext(ctx, "health_check_failed", slog.String("check", name), slog.String("message", c.Message))
		}
	}

	rt := map[string]interface{}{
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}
	if hs.clients != nil {
		rt["websocket_clients"] = hs.clients.ClientCount()
	}

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Version:   hs.version,
		Uptime:    time.Since(hs.startTime).Round(time.Second).String(),
		Checks:    checks,
		Runtime:   rt,
	}
}

func ok() ServiceHealth { return ServiceHealth{Status: "ok"} }

func failed(msg string) ServiceHealth { return ServiceHealth{Status: "error", Message: msg} }

func dirCheck(path string) ServiceHealth {
	info, err := os.Stat(path)
	if err != nil {
		return failed(err.Error())
	}
	if !info.IsDir() {
		return failed(path + " is not a directory")
	}
	return ok()
}

func toolCheck(cmd string) ServiceHealth {
	if _, err := exec.LookPath(cmd); err != nil {
		return failed(err.Error())
	}
	return ok()
}
