package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// DefaultSchedule runs every task at midnight on the 28th.
const DefaultSchedule = "0 0 28 * *"

// Task is a named, schedulable report step.
type Task struct {
	ID            int64      `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	StepID        string     `db:"step_id" json:"step_id"`
	Schedule      string     `db:"schedule" json:"schedule"`
	DefaultOffset int        `db:"default_offset" json:"default_offset"`
	LastRun       *time.Time `db:"last_run" json:"last_run,omitempty"`
	LastStatus    *string    `db:"last_status" json:"last_status,omitempty"`
	Enabled       bool       `db:"enabled" json:"enabled"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// TaskLog is one recorded run of a task.
type TaskLog struct {
	ID      int64     `db:"id" json:"id"`
	TaskID  int64     `db:"task_id" json:"task_id"`
	RunTime time.Time `db:"run_time" json:"run_time"`
	Status  string    `db:"status" json:"status"`
	Message string    `db:"message" json:"message"`
}

// TaskSeed names a step to register as a task.
type TaskSeed struct {
	Name   string
	StepID string
}

const taskColumns = `id, name, step_id, schedule, default_offset, last_run, last_status, enabled, created_at, updated_at`

// SeedTasks upserts one task per seed keyed by step ID. Existing tasks keep
// their enabled flag and history but get the seed's name, the default
// schedule and offset 1.
func (s *Store) SeedTasks(ctx context.Context, seeds []TaskSeed) error {
	now := s.now()
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, seed := range seeds {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO tasks (name, step_id, schedule, default_offset, enabled, created_at, updated_at)
				VALUES (?, ?, ?, 1, 1, ?, ?)
				ON CONFLICT(step_id) DO UPDATE SET
					name = excluded.name,
					schedule = excluded.schedule,
					default_offset = 1,
					updated_at = excluded.updated_at`,
				seed.Name, seed.StepID, DefaultSchedule, now, now)
			if err != nil {
				return fmt.Errorf("seed task %s: %w", seed.StepID, err)
			}
		}
		return nil
	})
}

// ListTasks returns every task ordered by name.
func (s *Store) ListTasks(ctx context.Context) ([]Task, error) {
	tasks := []Task{}
	if err := s.db.SelectContext(ctx, &tasks, `SELECT `+taskColumns+` FROM tasks ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// EnabledTasks returns enabled tasks ordered by ID.
func (s *Store) EnabledTasks(ctx context.Context) ([]Task, error) {
	tasks := []Task{}
	if err := s.db.SelectContext(ctx, &tasks, `SELECT `+taskColumns+` FROM tasks WHERE enabled = 1 ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list enabled tasks: %w", err)
	}
	return tasks, nil
}

// GetTask returns the task with id or ErrTaskNotFound.
func (s *Store) GetTask(ctx context.Context, id int64) (Task, error) {
	var t Task
	err := s.db.GetContext(ctx, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, fmt.Errorf("%w: %d", ErrTaskNotFound, id)
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// ToggleTask flips the enabled flag and returns the updated task.
func (s *Store) ToggleTask(ctx context.Context, id int64) (Task, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET enabled = NOT enabled, updated_at = ? WHERE id = ?`, s.now(), id)
	if err != nil {
		return Task{}, fmt.Errorf("toggle task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Task{}, fmt.Errorf("%w: %d", ErrTaskNotFound, id)
	}
	return s.GetTask(ctx, id)
}

// RecordRun stores a run's status on the task and appends a log row.
func (s *Store) RecordRun(ctx context.Context, taskID int64, runTime time.Time, status, message string) error {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET last_run = ?, last_status = ?, updated_at = ? WHERE id = ?`,
			runTime, status, s.now(), taskID); err != nil {
			return fmt.Errorf("update task %d: %w", taskID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_logs (task_id, run_time, status, message) VALUES (?, ?, ?, ?)`,
			taskID, runTime, status, message); err != nil {
			return fmt.Errorf("insert log for task %d: %w", taskID, err)
		}
		return nil
	})
}

// RecentLogs returns up to limit logs for a task, newest first.
func (s *Store) RecentLogs(ctx context.Context, taskID int64, limit int) ([]TaskLog, error) {
	logs := []TaskLog{}
	err := s.db.SelectContext(ctx, &logs,
		`SELECT id, task_id, run_time, status, message FROM task_logs
		 WHERE task_id = ? ORDER BY run_time DESC, id DESC LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("list logs for task %d: %w", taskID, err)
	}
	return logs, nil
}

// ClearLogs deletes every log of a task and returns how many were removed.
func (s *Store) ClearLogs(ctx context.Context, taskID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_logs WHERE task_id = ?`, taskID)
	if err != nil {
		return 0, fmt.Errorf("clear logs for task %d: %w", taskID, err)
	}
	return res.RowsAffected()
}
