// Package services implements the dashboard's business logic between the
// HTTP handlers and the report runner.
//
// TaskService runs stored tasks through the runner, records every run in
// the task log, and sends the consolidated email after a run-all. Long runs
// can be started in the background; JobTracker keeps their progress under a
// generated run ID and pushes each change to connected WebSocket clients.
//
// Services receive their collaborators through constructors and log with
// the injected *slog.Logger.
package services
