// Command neareports serves the task dashboard and runs scheduled reports.
//
// Usage:
//
//	neareports [serve]   start the dashboard server and scheduler
//	neareports initdb    create the task database schema
//	neareports seed      register one task per report step
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"neareports/internal/app"
	"neareports/internal/config"
	"neareports/internal/infrastructure"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("neareports_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	command := "serve"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "serve", "initdb", "seed":
	case "-h", "--help", "help":
		fmt.Fprintln(out, "usage: neareports [serve|initdb|seed]")
		return nil
	default:
		return fmt.Errorf("unknown command %q (want serve, initdb or seed)", command)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	switch command {
	case "initdb":
		if err := app.InitDB(ctx, cfg); err != nil {
			return err
		}
		fmt.Fprintf(out, "Initialized %s\n", cfg.Paths.DatabasePath)
		return nil
	case "seed":
		n, err := app.Seed(ctx, cfg, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Seeded %d tasks\n", n)
		return nil
	}

	logger.InfoContext(ctx, "application_starting",
		slog.String("service", infrastructure.ServiceName),
		slog.String("version", infrastructure.ServiceVersion),
		slog.Int("port", cfg.Server.Port))

	application, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run(ctx)
}
