package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"neareports/internal/config"
	apierrors "neareports/internal/errors"
	"neareports/internal/infrastructure"
	"neareports/internal/middleware"
)

// RouterConfig collects the router's collaborators. Metrics, WebSocket,
// Tracer and ReportMetrics are optional.
type RouterConfig struct {
	Tasks         TaskService
	Health        HealthChecker
	WebSocket     http.Handler
	Metrics       http.Handler
	RateLimit     config.RateLimitConfig
	Tracer        trace.Tracer
	ReportMetrics *infrastructure.ReportMetrics
	Logger        *slog.Logger
}

// NewRouter builds the dashboard router.
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpLogger := infrastructure.WithComponent(logger, "http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Telemetry(cfg.Tracer, cfg.ReportMetrics))
	r.Use(middleware.StructuredLogger(httpLogger))
	r.Use(middleware.Recoverer(httpLogger))
	r.Use(middleware.SecurityHeaders)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierrors.RenderError(w, r, apierrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierrors.RenderError(w, r, apierrors.ErrMethodNotAllowed)
	})

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	if cfg.WebSocket != nil {
		r.Handle("/ws", cfg.WebSocket)
	}

	tasks := NewTaskHandler(cfg.Tasks, logger)
	health := NewHealthHandler(cfg.Health, httpLogger)

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			r.Use(middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, httpLogger).Handler)
		}
		r.Get("/health", health.HealthCheck)
		tasks.Routes(r)
	})

	return r
}
