package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adityakurhade/finsight/internal/api/response"
	"github.com/adityakurhade/finsight/internal/jobs"
	"github.com/adityakurhade/finsight/pkg/models"
)

// StatusGetter answers status polls for a task.
type StatusGetter interface {
	GetStatus(ctx context.Context, taskID uuid.UUID) (*models.TaskState, error)
}

// NewStatusHandler returns the handler for GET /api/v1/analyses/{taskID}.
func NewStatusHandler(svc StatusGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "taskID must be a valid UUID", nil)
			return
		}

		state, err := svc.GetStatus(r.Context(), taskID)
		if err != nil {
			if errors.Is(err, jobs.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "No analysis exists for this task", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load analysis status", nil)
			return
		}

		response.JSON(w, state)
	}
}
