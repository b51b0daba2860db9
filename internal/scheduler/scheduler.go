// Package scheduler runs enabled tasks on their cron schedules.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"neareports/internal/infrastructure"
	"neareports/internal/operations"
	"neareports/internal/store"
)

// TaskSource lists the tasks to schedule.
type TaskSource interface {
	EnabledTasks(ctx context.Context) ([]store.Task, error)
}

// TaskRunner runs one stored task.
type TaskRunner interface {
	RunTask(ctx context.Context, taskID int64, offset int) (operations.Outcome, error)
}

// Entry describes a scheduled task.
type Entry struct {
	TaskID   int64     `json:"task_id"`
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next"`
}

// Scheduler owns a cron instance whose entries mirror the enabled tasks.
type Scheduler struct {
	cron   *cron.Cron
	tasks  TaskSource
	runner TaskRunner
	logger *slog.Logger

	mu        sync.Mutex
	entries   map[int64]cron.EntryID
	scheduled map[int64]store.Task
}

// New creates a scheduler evaluating schedules in loc.
func New(tasks TaskSource, runner TaskRunner, loc *time.Location, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow))),
		tasks:     tasks,
		runner:    runner,
		logger:    infrastructure.WithComponent(logger, "scheduler"),
		entries:   make(map[int64]cron.EntryID),
		scheduled: make(map[int64]store.Task),
	}
}

// Start loads the schedules and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.InfoContext(ctx, "scheduler_started")
	return nil
}

// Stop halts the cron loop and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload replaces every entry with one per enabled task that has a valid
// five-field schedule. Tasks with an empty or invalid schedule are skipped.
func (s *Scheduler) Reload(ctx context.Context) error {
	tasks, err := s.tasks.EnabledTasks(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.entries {
		s.cron.Remove(entry)
		delete(s.entries, id)
		delete(s.scheduled, id)
	}

	var errs []error
	for _, task := range tasks {
		spec := strings.TrimSpace(task.Schedule)
		if spec == "" {
			continue
		}
		if len(strings.Fields(spec)) != 5 {
			s.logger.WarnContext(ctx, "schedule_skipped", slog.Int64("task_id", task.ID), slog.String("schedule", spec))
			continue
		}
		id, err := s.cron.AddJob(spec, s.job(task))
		if err != nil {
			s.logger.WarnContext(ctx, "schedule_invalid",
				slog.Int64("task_id", task.ID),
				slog.String("schedule", spec),
				slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		s.entries[task.ID] = id
		s.scheduled[task.ID] = task
	}

	s.logger.InfoContext(ctx, "schedules_reloaded", slog.Int("entries", len(s.entries)))
	if len(errs) > 0 {
		s.logger.DebugContext(ctx, "schedule_errors", slog.Any("errors", errors.Join(errs...)))
	}
	return nil
}

// Entries lists the scheduled tasks with their next run time.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for taskID, id := range s.entries {
		task := s.scheduled[taskID]
		out = append(out, Entry{
			TaskID:   taskID,
			Name:     task.Name,
			Schedule: task.Schedule,
			Next:     s.cron.Entry(id).Next,
		})
	}
	return out
}

func (s *Scheduler) job(task store.Task) cron.Job {
	return cron.FuncJob(func() {
		ctx := infrastructure.EnsureTraceID(context.Background())
		log := s.logger.With(slog.Int64("task_id", task.ID), slog.String("task", task.Name))
		log.InfoContext(ctx, "scheduled_run_started")
		outcome, err := s.runner.RunTask(ctx, task.ID, task.DefaultOffset)
		if err != nil {
			log.WarnContext(ctx, "scheduled_run_error", slog.String("error", err.Error()))
			return
		}
		log.InfoContext(ctx, "scheduled_run_finished", slog.String("status", string(outcome.Status)))
	})
}
