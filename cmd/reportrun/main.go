// Command reportrun runs report steps once from the command line.
//
// Usage:
//
//	reportrun [-step id|all] [-offset n] [-email]
//
// With -step all (the default) every step runs in pipeline order and the
// run stops at the first failure. -email sends the generated workbooks in
// one consolidated message.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"neareports/internal/app"
	"neareports/internal/config"
	"neareports/internal/infrastructure"
	"neareports/internal/notify"
	"neareports/internal/operations"
	"neareports/internal/period"
)

// options are the parsed command line flags.
type options struct {
	step   string
	offset int
	email  bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("reportrun", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.step, "step", "all", "step to run (compliance, interruption, supply, ngcp, distribution or all)")
	fs.IntVar(&opts.offset, "offset", 1, "months back from the current month (values below 1 mean 1)")
	fs.BoolVar(&opts.email, "email", false, "email the generated workbooks")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	opts.step = strings.ToLower(strings.TrimSpace(opts.step))
	if opts.offset < 1 {
		opts.offset = 1
	}
	return opts, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("logger_init_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	providers, metrics, err := app.Telemetry(cfg, logger)
	if err != nil {
		logger.Error("telemetry_init_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer providers.Shutdown(context.Background())

	runner, err := app.NewPipeline(cfg, logger, providers.Tracer, metrics)
	if err != nil {
		logger.Error("pipeline_init_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var mail sender
	if opts.email {
		mailer, err := notify.NewMailer(cfg.Mail, logger, metrics)
		if err != nil {
			logger.Error("mail_init_failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		mail = mailer
	}

	now, err := app.Clock(cfg)
	if err != nil {
		logger.Error("clock_init_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := execute(ctx, runner, mail, opts, now(), os.Stdout); err != nil {
		os.Exit(1)
	}
}

// stepRunner is the part of operations.Runner the command uses.
type stepRunner interface {
	RunOne(ctx context.Context, stepID string, offset int) operations.Outcome
	RunAll(ctx context.Context, offset int) ([]string, error)
}

type sender interface {
	SendEmail(ctx context.Context, subject, body string, attachments []string) error
}

// errRunFailed marks a run whose failure was already reported on out.
var errRunFailed = errors.New("run failed")

// execute runs the selected steps, prints the outcome and optionally mails
// the artifacts. mail may be nil when opts.email is false.
func execute(ctx context.Context, runner stepRunner, mail sender, opts options, now time.Time, out io.Writer) error {
	var artifacts []string

	if opts.step == "" || opts.step == "all" {
		paths, err := runner.RunAll(ctx, opts.offset)
		if err != nil {
			_, msg := operations.Classify(err)
			var stepErr *operations.StepError
			if errors.As(err, &stepErr) {
				fmt.Fprintf(out, "%s: %s\n", stepErr.StepName, msg)
			} else {
				fmt.Fprintln(out, msg)
			}
			return errRunFailed
		}
		fmt.Fprintln(out, operations.GeneratedMessage(paths))
		artifacts = paths
	} else {
		outcome := runner.RunOne(ctx, opts.step, opts.offset)
		fmt.Fprintln(out, outcome.Message)
		if outcome.Status == operations.StatusFailed {
			return errRunFailed
		}
		artifacts = outcome.Artifacts
	}

	if !opts.email {
		return nil
	}
	if len(artifacts) == 0 {
		fmt.Fprintln(out, "No files generated; email not sent")
		return nil
	}
	subject, body := notify.ConsolidatedMessage(period.Resolve(now, opts.offset), len(artifacts))
	if err := mail.SendEmail(ctx, subject, body, artifacts); err != nil {
		fmt.Fprintf(out, "Email failed: %v\n", err)
		return errRunFailed
	}
	fmt.Fprintf(out, "Email sent with %d attachments\n", len(artifacts))
	return nil
}
