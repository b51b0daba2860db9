package services

import "errors"

var (
	// ErrTaskUnavailable is returned when a task is disabled or missing.
	ErrTaskUnavailable = errors.New("task is disabled or does not exist")

	// ErrRunNotFound is returned for unknown background run IDs.
	ErrRunNotFound = errors.New("run not found")
)

// TaskUnavailableMessage is shown when a disabled or missing task is run.
const TaskUnavailableMessage = "Task is disabled or does not exist."
