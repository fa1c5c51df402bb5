package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adityakurhade/finsight/internal/api/response"
	"github.com/adityakurhade/finsight/internal/store"
	"github.com/adityakurhade/finsight/pkg/models"
)

// AnalysisDirectory exposes the durable analysis records. The store
// satisfies it directly.
type AnalysisDirectory interface {
	ListAnalyses(ctx context.Context, filter store.AnalysisFilter) ([]*models.Analysis, int, error)
	GetAnalysisStats(ctx context.Context, userID *uuid.UUID) (*models.AnalysisStats, error)
	DeleteAnalysis(ctx context.Context, taskID uuid.UUID) error
}

var validStatuses = map[string]bool{
	models.StatusQueued:     true,
	models.StatusProcessing: true,
	models.StatusRetrying:   true,
	models.StatusSuccess:    true,
	models.StatusFailed:     true,
}

// NewListAnalysesHandler returns the handler for GET /api/v1/analyses.
// Supports ?status=, ?user_id=, ?page= and ?limit=.
func NewListAnalysesHandler(dir AnalysisDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := store.AnalysisFilter{}

		if status := q.Get("status"); status != "" {
			if !validStatuses[status] {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "unknown status filter", nil)
				return
			}
			filter.Status = status
		}

		if raw := q.Get("user_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id must be a valid UUID", nil)
				return
			}
			filter.UserID = &id
		}

		page := parsePositiveInt(q.Get("page"), 1)
		limit := parsePositiveInt(q.Get("limit"), 20)
		filter.Limit = limit
		filter.Offset = (page - 1) * limit

		analyses, total, err := dir.ListAnalyses(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list analyses", nil)
			return
		}

		response.Collection(w, analyses, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewStatsHandler returns the handler for GET /api/v1/analyses/stats.
// Supports ?user_id= to scope the counters to one user.
func NewStatsHandler(dir AnalysisDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var userID *uuid.UUID
		if raw := r.URL.Query().Get("user_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id must be a valid UUID", nil)
				return
			}
			userID = &id
		}

		stats, err := dir.GetAnalysisStats(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load stats", nil)
			return
		}
		response.JSON(w, stats)
	}
}

// NewDeleteAnalysisHandler returns the handler for DELETE /api/v1/analyses/{taskID}.
func NewDeleteAnalysisHandler(dir AnalysisDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "taskID must be a valid UUID", nil)
			return
		}

		if err := dir.DeleteAnalysis(r.Context(), taskID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "No analysis exists for this task", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete analysis", nil)
			return
		}
		response.NoContent(w)
	}
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
