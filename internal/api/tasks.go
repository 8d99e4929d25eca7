package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/format"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/observability"
)

// taskHandler serves the asynchronous task endpoints.
type taskHandler struct {
	deps   Deps
	logger *observability.Logger
}

// taskResponse is the polling payload. The rendered document is attached
// once the task completes.
type taskResponse struct {
	*domain.Task
	Document *format.Document `json:"document,omitempty"`
}

// Create handles POST /api/v1/tasks: admit the document and return a task
// id for polling.
func (h *taskHandler) Create(w http.ResponseWriter, r *http.Request) {
	docs := &documentHandler{deps: h.deps, logger: h.logger}

	imageData, cfg, err := docs.readRequest(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	task, err := h.deps.Registry.Create(r.Context(), cfg)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.deps.Orchestrator.Run(task, imageData)

	h.logger.WithContext(r.Context()).Info().
		Str("task_id", task.ID).
		Msg("Task admitted")

	writeJSON(w, http.StatusAccepted, taskResponse{Task: task})
}

// Get handles GET /api/v1/tasks/{taskID}.
func (h *taskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := h.deps.Registry.Get(r.Context(), taskID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := taskResponse{Task: task}
	if task.Status == domain.StatusCompleted && task.Result != nil {
		doc, err := format.Format(task.Result, format.Options{
			Format:             task.Config.OutputFormat,
			IncludeConfidence:  task.Config.IncludeConfidence,
			IncludeCoordinates: task.Config.IncludeCoordinates,
		})
		if err == nil {
			resp.Document = doc
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Cancel handles DELETE /api/v1/tasks/{taskID}. Terminal tasks cannot be
// cancelled.
func (h *taskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	if err := h.deps.Orchestrator.Cancel(r.Context(), taskID); err != nil {
		if domain.IsType(err, domain.ErrorTypeValidation) {
			writeError(w, r, http.StatusConflict, "conflict", "task already terminal")
			return
		}
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"task_id": taskID,
		"status":  string(domain.StatusCancelled),
	})
}
