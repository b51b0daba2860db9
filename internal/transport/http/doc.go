// Package http implements the dashboard API. Handlers stay thin: they parse
// the request, call the task or health service and translate service errors
// into the JSON error envelope from internal/errors.
//
// # Routes
//
//	GET  /api/tasks                   every task ordered by name
//	GET  /api/tasks/{id}              one task with its last 20 logs
//	POST /api/tasks/{id}/run          run now and wait for the outcome
//	POST /api/tasks/{id}/run-async    run in the background, returns run_id
//	POST /api/tasks/{id}/toggle       enable or disable
//	POST /api/tasks/{id}/clear-logs   delete the task's logs
//	POST /api/run-all                 run every enabled task, then email
//	POST /api/run-all-async           same, in the background
//	GET  /api/progress/{runID}        background run progress
//	GET  /api/health                  dependency checks
//	GET  /ws                          live progress and completion events
//	GET  /metrics                     Prometheus exposition
//
// Run endpoints accept an optional JSON body {"offset": N}. A missing,
// non-numeric or sub-1 offset falls back to the task's default offset.
package http
