package http

import (
	"context"

	"neareports/internal/operations"
	"neareports/internal/services"
	"neareports/internal/store"
)

// TaskService is the task operations the dashboard exposes.
type TaskService interface {
	ListTasks(ctx context.Context) ([]store.Task, error)
	GetTask(ctx context.Context, id int64) (services.TaskDetail, error)
	ToggleTask(ctx context.Context, id int64) (store.Task, error)
	ClearLogs(ctx context.Context, id int64) (int64, error)
	RunTask(ctx context.Context, taskID int64, offset int) (operations.Outcome, error)
	RunTaskAsync(ctx context.Context, taskID int64, offset int) (string, error)
	RunAllTasks(ctx context.Context, offset int, progress services.ProgressFunc) (services.RunAllResult, error)
	RunAllAsync(ctx context.Context, offset int) string
	Progress(runID string) (services.Progress, error)
}

// HealthChecker reports dependency health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) services.HealthStatus
}
