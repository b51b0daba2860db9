package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"neareports/internal/config"
	"neareports/internal/infrastructure"
	"neareports/internal/notify"
	"neareports/internal/operations"
	"neareports/internal/scheduler"
	"neareports/internal/services"
	"neareports/internal/store"
	handlers "neareports/internal/transport/http"
	ws "neareports/internal/websocket"
)

const defaultShutdownTimeout = 30 * time.Second

// Application holds the dashboard server and everything it depends on.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.ReportMetrics
	Store         *store.Store
	Runner        *operations.Runner
	Tasks         *services.TaskService
	Health        *services.HealthService
	Scheduler     *scheduler.Scheduler
	WebSocketHub  *ws.Hub
	Server        *http.Server
}

// Telemetry initializes OpenTelemetry and the report instruments for cfg.
func Telemetry(cfg *config.Config, logger *slog.Logger) (*infrastructure.OTelProviders, *infrastructure.ReportMetrics, error) {
	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.NewReportMetrics(providers.Meter)
	if err != nil {
		_ = providers.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("failed to create report metrics: %w", err)
	}
	return providers, metrics, nil
}

// NewApplication builds the dashboard application. The store is opened,
// migrated and seeded; nothing is started until Run.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}
	now, err := Clock(cfg)
	if err != nil {
		return nil, err
	}

	providers, metrics, err := Telemetry(cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
	}

	a.Runner, err = NewPipeline(cfg, logger, providers.Tracer, metrics)
	if err != nil {
		a.closeAll(ctx)
		return nil, err
	}

	a.Store, err = store.Open(ctx, cfg.Paths.DatabasePath)
	if err != nil {
		a.closeAll(ctx)
		return nil, fmt.Errorf("failed to open task store: %w", err)
	}
	if err := a.Store.SeedTasks(ctx, TaskSeeds(a.Runner.Registry())); err != nil {
		a.closeAll(ctx)
		return nil, fmt.Errorf("failed to seed tasks: %w", err)
	}

	a.WebSocketHub = ws.NewHub(logger)

	opts := []services.Option{
		services.WithBroadcaster(a.WebSocketHub),
		services.WithLocation(loc),
		services.WithClock(now),
	}
	if cfg.Mail.Enabled() {
		mailer, err := notify.NewMailer(cfg.Mail, logger, metrics)
		if err != nil {
			a.closeAll(ctx)
			return nil, fmt.Errorf("failed to configure mail: %w", err)
		}
		opts = append(opts, services.WithNotifier(mailer, cfg.Mail.PollForReply))
	} else {
		logger.WarnContext(ctx, "mail_disabled", slog.String("reason", "sender or recipients not configured"))
	}
	a.Tasks = services.NewTaskService(a.Store, a.Runner, logger, opts...)

	if cfg.Scheduler.Enabled {
		a.Scheduler = scheduler.New(a.Store, a.Tasks, loc, logger)
		a.Tasks.SetReloader(a.Scheduler)
	}

	a.Health = services.NewHealthService(infrastructure.ServiceVersion, cfg.Paths, cfg.OCR, a.Store, a.WebSocketHub, logger)

	router := handlers.NewRouter(handlers.RouterConfig{
		Tasks:         a.Tasks,
		Health:        a.Health,
		WebSocket:     ws.ServeWS(a.WebSocketHub, logger),
		Metrics:       providers.PrometheusHTTP,
		RateLimit:     cfg.Server.RateLimit,
		Tracer:        providers.Tracer,
		ReportMetrics: metrics,
		Logger:        logger,
	})

	a.Server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		// Synchronous runs hold the response open for the whole step.
		WriteTimeout: cfg.Server.OperationTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return a, nil
}

// Run starts the hub, the scheduler and the server, and blocks until ctx is
// cancelled or the server fails. Shutdown is graceful in both cases.
func (a *Application) Run(ctx context.Context) error {
	go a.WebSocketHub.Run()

	if a.Scheduler != nil {
		if err := a.Scheduler.Start(ctx); err != nil {
			a.Stop(context.WithoutCancel(ctx))
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		a.Logger.InfoContext(ctx, "server_started", slog.String("address", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "shutdown_requested")
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	if err := a.Stop(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Stop shuts everything down within the configured shutdown timeout.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting_down")

	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
		}
	}
	if a.Tasks != nil {
		if err := a.Tasks.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("background runs: %w", err))
		}
	}
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	a.closeAll(shutdownCtx)

	a.Logger.InfoContext(ctx, "shutdown_complete", slog.Int("errors", len(errs)))
	return errors.Join(errs...)
}

func (a *Application) closeAll(ctx context.Context) {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "store_close_failed", slog.String("error", err.Error()))
		}
		a.Store = nil
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "otel_shutdown_failed", slog.String("error", err.Error()))
		}
		a.OTelProviders = nil
	}
}

// InitDB creates the task store schema at cfg's database path.
func InitDB(ctx context.Context, cfg *config.Config) error {
	st, err := store.Open(ctx, cfg.Paths.DatabasePath)
	if err != nil {
		return err
	}
	return st.Close()
}

// Seed upserts one task per report step and returns how many were seeded.
func Seed(ctx context.Context, cfg *config.Config, logger *slog.Logger) (int, error) {
	runner, err := NewPipeline(cfg, logger, nil, nil)
	if err != nil {
		return 0, err
	}
	st, err := store.Open(ctx, cfg.Paths.DatabasePath)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	seeds := TaskSeeds(runner.Registry())
	if err := st.SeedTasks(ctx, seeds); err != nil {
		return 0, err
	}
	return len(seeds), nil
}
