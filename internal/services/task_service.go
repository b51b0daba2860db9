package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"neareports/internal/infrastructure"
	"neareports/internal/notify"
	"neareports/internal/operations"
	"neareports/internal/period"
	"neareports/internal/store"
)

// TaskStore is the persistence the task service needs.
type TaskStore interface {
	ListTasks(ctx context.Context) ([]store.Task, error)
	EnabledTasks(ctx context.Context) ([]store.Task, error)
	GetTask(ctx context.Context, id int64) (store.Task, error)
	ToggleTask(ctx context.Context, id int64) (store.Task, error)
	RecordRun(ctx context.Context, taskID int64, runTime time.Time, status, message string) error
	RecentLogs(ctx context.Context, taskID int64, limit int) ([]store.TaskLog, error)
	ClearLogs(ctx context.Context, taskID int64) (int64, error)
}

// StepRunner runs a single report step.
type StepRunner interface {
	RunOne(ctx context.Context, stepID string, offset int) operations.Outcome
}

// Reloader rebuilds schedules after a task changes.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ProgressFunc observes run-all progress.
type ProgressFunc func(current, total int, message string)

// RecentLogLimit is how many log rows a task detail shows.
const RecentLogLimit = 20

// RunAllResult summarizes a run-all.
type RunAllResult struct {
	Outcomes  []TaskOutcome `json:"outcomes"`
	Artifacts []string      `json:"artifacts"`
	// Email describes what happened to the consolidated email.
	Email string `json:"email"`
}

// TaskOutcome pairs a task with the result of running it.
type TaskOutcome struct {
	TaskID int64  `json:"task_id"`
	Name   string `json:"name"`
	operations.Outcome
}

// TaskDetail is a task with its most recent logs.
type TaskDetail struct {
	Task store.Task      `json:"task"`
	Logs []store.TaskLog `json:"logs"`
}

// TaskService runs and manages dashboard tasks.
type TaskService struct {
	store    TaskStore
	runner   StepRunner
	notifier notify.Notifier
	poll     bool
	reloader Reloader
	jobs     *JobTracker
	hub      Broadcaster
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger

	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

// Option configures a TaskService.
type Option func(*TaskService)

// WithNotifier enables the consolidated email. When pollForReply is set the
// service waits in the background for a yes/no answer.
func WithNotifier(n notify.Notifier, pollForReply bool) Option {
	return func(s *TaskService) {
		s.notifier = n
		s.poll = pollForReply
	}
}

// WithBroadcaster publishes progress and completion events.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *TaskService) { s.hub = b }
}

// WithLocation sets the zone run times are recorded in.
func WithLocation(loc *time.Location) Option {
	return func(s *TaskService) { s.loc = loc }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *TaskService) { s.now = now }
}

// NewTaskService creates a task service.
func NewTaskService(st TaskStore, runner StepRunner, logger *slog.Logger, opts ...Option) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &TaskService{
		store:  st,
		runner: runner,
		loc:    time.Local,
		now:    time.Now,
		logger: infrastructure.WithComponent(logger, "task_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.jobs = NewJobTracker(s.hub)
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())
	return s
}

// SetReloader registers the scheduler to refresh after toggles.
func (s *TaskService) SetReloader(r Reloader) {
	s.reloader = r
}

// Jobs exposes the background run tracker.
func (s *TaskService) Jobs() *JobTracker {
	return s.jobs
}

// ListTasks returns every task ordered by name.
func (s *TaskService) ListTasks(ctx context.Context) ([]store.Task, error) {
	return s.store.ListTasks(ctx)
}

// GetTask returns a task with its recent logs, newest first.
func (s *TaskService) GetTask(ctx context.Context, id int64) (TaskDetail, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return TaskDetail{}, err
	}
	logs, err := s.store.RecentLogs(ctx, id, RecentLogLimit)
	if err != nil {
		return TaskDetail{}, err
	}
	return TaskDetail{Task: task, Logs: logs}, nil
}

// ToggleTask flips a task's enabled flag and reloads schedules.
func (s *TaskService) ToggleTask(ctx context.Context, id int64) (store.Task, error) {
	task, err := s.store.ToggleTask(ctx, id)
	if err != nil {
		return store.Task{}, err
	}
	s.logger.InfoContext(ctx, "task_toggled", slog.Int64("task_id", id), slog.Bool("enabled", task.Enabled))
	if s.reloader != nil {
		if err := s.reloader.Reload(ctx); err != nil {
			s.logger.ErrorContext(ctx, "schedule_reload_failed", slog.String("error", err.Error()))
		}
	}
	return task, nil
}

// ClearLogs deletes a task's logs but keeps the task.
func (s *TaskService) ClearLogs(ctx context.Context, id int64) (int64, error) {
	if _, err := s.store.GetTask(ctx, id); err != nil {
		return 0, err
	}
	return s.store.ClearLogs(ctx, id)
}

// ResolveOffset returns offset when it is at least 1, else fallback, else 1.
func ResolveOffset(offset, fallback int) int {
	if offset >= 1 {
		return offset
	}
	if fallback >= 1 {
		return fallback
	}
	return 1
}

// RunTask runs an enabled task's step and records the result. Offsets below
// 1 use the task's default offset. A disabled or missing task is not run and
// yields ErrTaskUnavailable with a SKIPPED outcome.
func (s *TaskService) RunTask(ctx context.Context, taskID int64, offset int) (operations.Outcome, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil && !errors.Is(err, store.ErrTaskNotFound) {
		return operations.Outcome{}, err
	}
	if err != nil || !task.Enabled {
		return operations.Outcome{
			Status:    operations.StatusSkipped,
			Message:   TaskUnavailableMessage,
			Artifacts: []string{},
		}, ErrTaskUnavailable
	}

	offset = ResolveOffset(offset, task.DefaultOffset)
	log := s.logger.With(slog.Int64("task_id", task.ID), slog.String("task", task.Name), slog.Int("offset", offset))
	log.InfoContext(ctx, "task_run_started")

	start := s.now().In(s.loc)
	outcome := s.runner.RunOne(ctx, task.StepID, offset)

	if err := s.store.RecordRun(ctx, task.ID, start, string(outcome.Status), outcome.Message); err != nil {
		log.ErrorContext(ctx, "task_run_record_failed", slog.String("error", err.Error()))
		return outcome, fmt.Errorf("record run: %w", err)
	}

	log.InfoContext(ctx, "task_run_completed",
		slog.String("status", string(outcome.Status)),
		slog.String("message", outcome.Message))
	if s.hub != nil {
		s.hub.Broadcast("task_completed", TaskOutcome{TaskID: task.ID, Name: task.Name, Outcome: outcome})
	}
	return outcome, nil
}

// RunAllTasks runs every enabled task in ID order, continuing past
// failures, then emails all artifacts once. Offsets below 1 become 1.
func (s *TaskService) RunAllTasks(ctx context.Context, offset int, progress ProgressFunc) (RunAllResult, error) {
	offset = ResolveOffset(offset, 1)
	if progress == nil {
		progress = func(int, int, string) {}
	}

	tasks, err := s.store.EnabledTasks(ctx)
	if err != nil {
		return RunAllResult{}, err
	}

	result := RunAllResult{Outcomes: []TaskOutcome{}, Artifacts: []string{}}
	total := len(tasks)
	progress(0, total, "Starting...")
	for i, task := range tasks {
		progress(i, total, "Running "+task.Name)
		outcome, err := s.RunTask(ctx, task.ID, offset)
		if err != nil && !errors.Is(err, ErrTaskUnavailable) {
			s.logger.ErrorContext(ctx, "run_all_task_error", slog.Int64("task_id", task.ID), slog.String("error", err.Error()))
		}
		result.Outcomes = append(result.Outcomes, TaskOutcome{TaskID: task.ID, Name: task.Name, Outcome: outcome})
		result.Artifacts = append(result.Artifacts, outcome.Artifacts...)
		progress(i+1, total, fmt.Sprintf("%s: %s", task.Name, outcome.Status))
	}

	result.Email = s.notifyAll(ctx, period.Resolve(s.now().In(s.loc), offset), result.Artifacts)
	progress(total, total, result.Email)
	return result, nil
}

// notifyAll sends the consolidated email. Failures are reported in the
// returned message and never undo the run.
func (s *TaskService) notifyAll(ctx context.Context, m period.Month, artifacts []string) string {
	if len(artifacts) == 0 {
		return "No files generated"
	}
	if s.notifier == nil {
		return fmt.Sprintf("Generated %d files; email is not configured", len(artifacts))
	}

	subject, body := notify.ConsolidatedMessage(m, len(artifacts))
	if err := s.notifier.SendEmail(ctx, subject, body, artifacts); err != nil {
		return fmt.Sprintf("Email failed: %v", err)
	}
	if s.poll {
		s.awaitReply(ctx, m)
	}
	return fmt.Sprintf("Email sent with %d attachments", len(artifacts))
}

// awaitReply waits for the yes/no answer in the background and acknowledges
// it. The wait outlives the request that triggered it.
func (s *TaskService) awaitReply(ctx context.Context, m period.Month) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.bgCtx, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stop()
		defer cancel()

		reply, found, err := s.notifier.WaitForReply(ctx, notify.ReplyKeywords)
		if err != nil {
			s.logger.WarnContext(ctx, "reply_wait_failed", slog.String("error", err.Error()))
			return
		}
		if !found {
			s.logger.InfoContext(ctx, "reply_not_received", slog.String("month", m.String()))
			return
		}
		subject, body := notify.AcknowledgementMessage(m, reply)
		if err := s.notifier.SendSimple(ctx, subject, body); err != nil {
			s.logger.ErrorContext(ctx, "acknowledgement_failed", slog.String("error", err.Error()))
		}
	}()
}

// RunTaskAsync starts RunTask in the background and returns its run ID.
func (s *TaskService) RunTaskAsync(ctx context.Context, taskID int64, offset int) (string, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	id := s.jobs.Start(1, "Starting "+task.Name)

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		outcome, _ := s.RunTask(bg, taskID, offset)
		s.jobs.Update(id, func(p *Progress) {
			p.Current = 1
			p.Message = outcome.Message
			p.Status = string(outcome.Status)
			p.Done = true
		})
	}()
	return id, nil
}

// RunAllAsync starts RunAllTasks in the background and returns its run ID.
func (s *TaskService) RunAllAsync(ctx context.Context, offset int) string {
	id := s.jobs.Start(0, "Starting...")

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, err := s.RunAllTasks(bg, offset, func(current, total int, message string) {
			s.jobs.Update(id, func(p *Progress) {
				p.Current, p.Total, p.Message = current, total, message
			})
		})
		s.jobs.Update(id, func(p *Progress) {
			p.Done = true
			p.Status = string(operations.StatusSuccess)
			if err != nil {
				p.Status = string(operations.StatusFailed)
				p.Message = err.Error()
			}
		})
	}()
	return id
}

// Progress returns a background run's progress.
func (s *TaskService) Progress(runID string) (Progress, error) {
	p, ok := s.jobs.Get(runID)
	if !ok {
		return Progress{}, ErrRunNotFound
	}
	return p, nil
}

// Shutdown cancels reply waits and waits for background work to finish or
// ctx to expire.
func (s *TaskService) Shutdown(ctx context.Context) error {
	s.bgCancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
