package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "neareports/internal/errors"
	"neareports/internal/infrastructure"
	"neareports/internal/services"
)

// TaskHandler serves the task and run endpoints.
type TaskHandler struct {
	service TaskService
	logger  *slog.Logger
}

// NewTaskHandler creates a task handler.
func NewTaskHandler(service TaskService, logger *slog.Logger) *TaskHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		service: service,
		logger:  infrastructure.WithComponent(logger, "task_handler"),
	}
}

// Routes mounts the handler under /api.
func (h *TaskHandler) Routes(r chi.Router) {
	r.Get("/tasks", h.ListTasks)
	r.Route("/tasks/{id}", func(r chi.Router) {
		r.Get("/", h.GetTask)
		r.Post("/run", h.RunTask)
		r.Post("/run-async", h.RunTaskAsync)
		r.Post("/toggle", h.ToggleTask)
		r.Post("/clear-logs", h.ClearLogs)
	})
	r.Post("/run-all", h.RunAll)
	r.Post("/run-all-async", h.RunAllAsync)
	r.Get("/progress/{runID}", h.GetProgress)
}

func (h *TaskHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apiError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request_failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	apierrors.RenderError(w, r, apiErr)
}

// ListTasks returns every task ordered by name.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.ListTasks(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"tasks": tasks})
}

// GetTask returns one task with its recent logs.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, apiErr := taskID(r)
	if apiErr != nil {
		apierrors.RenderError(w, r, apiErr)
		return
	}
	detail, err := h.service.GetTask(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, detail)
}

// RunTask runs a task synchronously. A step failure is still a 200: the run
// happened and its outcome is in the body.
func (h *TaskHandler) RunTask(w http.ResponseWriter, r *http.Request) {
	id, apiErr := taskID(r)
	if apiErr != nil {
		apierrors.RenderError(w, r, apiErr)
		return
	}
	req := decodeRunRequest(r)

	outcome, err := h.service.RunTask(r.Context(), id, int(req.Offset))
	if err != nil {
		if errors.Is(err, services.ErrTaskUnavailable) {
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, outcome)
			return
		}
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, outcome)
}

// RunTaskAsync starts a task in the background.
func (h *TaskHandler) RunTaskAsync(w http.ResponseWriter, r *http.Request) {
	id, apiErr := taskID(r)
	if apiErr != nil {
		apierrors.RenderError(w, r, apiErr)
		return
	}
	req := decodeRunRequest(r)

	runID, err := h.service.RunTaskAsync(r.Context(), id, int(req.Offset))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"run_id": runID})
}

// ToggleTask flips a task's enabled flag.
func (h *TaskHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	id, apiErr := taskID(r)
	if apiErr != nil {
		apierrors.RenderError(w, r, apiErr)
		return
	}
	task, err := h.service.ToggleTask(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, task)
}

// ClearLogs deletes a task's logs.
func (h *TaskHandler) ClearLogs(w http.ResponseWriter, r *http.Request) {
	id, apiErr := taskID(r)
	if apiErr != nil {
		apierrors.RenderError(w, r, apiErr)
		return
	}
	n, err := h.service.ClearLogs(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]int64{"deleted": n})
}

// RunAll runs every enabled task and returns the consolidated result.
func (h *TaskHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	req := decodeRunRequest(r)

	result, err := h.service.RunAllTasks(r.Context(), int(req.Offset), nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// RunAllAsync starts a run-all in the background.
func (h *TaskHandler) RunAllAsync(w http.ResponseWriter, r *http.Request) {
	req := decodeRunRequest(r)

	runID := h.service.RunAllAsync(r.Context(), int(req.Offset))
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"run_id": runID})
}

// GetProgress reports a background run's progress.
func (h *TaskHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Progress(chi.URLParam(r, "runID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, p)
}

