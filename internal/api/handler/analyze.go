// Package handler contains the HTTP handlers for the FinSight API. Each
// handler depends on a narrow interface so tests can swap in fakes.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/adityakurhade/finsight/internal/api/response"
	"github.com/adityakurhade/finsight/internal/document"
	"github.com/adityakurhade/finsight/internal/jobs"
	"github.com/adityakurhade/finsight/pkg/models"
)

// defaultQuery is applied when a submission carries no query of its own.
const defaultQuery = "Analyze this financial document and provide investment insights"

// Submitter accepts a document and returns the queued analysis.
type Submitter interface {
	Submit(ctx context.Context, params jobs.SubmitParams) (*models.Analysis, error)
}

// NewAnalyzeHandler returns the handler for POST /api/v1/analyses. The
// request is multipart/form-data with a "file" part, an optional "query"
// field, and an optional "user_id" field.
func NewAnalyzeHandler(svc Submitter, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Leave headroom for the non-file form fields.
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Request must be multipart/form-data with a file part", nil)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
			return
		}
		defer file.Close()

		query := r.FormValue("query")
		if query == "" {
			query = defaultQuery
		}

		var userID *uuid.UUID
		if raw := r.FormValue("user_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "user_id must be a valid UUID", nil)
				return
			}
			userID = &id
		}

		analysis, err := svc.Submit(r.Context(), jobs.SubmitParams{
			UserID:   userID,
			Filename: header.Filename,
			Query:    query,
			File:     file,
		})
		if err != nil {
			switch {
			case errors.Is(err, document.ErrTooLarge):
				response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
					"The uploaded document exceeds the size limit", nil)
			case errors.Is(err, document.ErrNotPDF):
				response.Error(w, http.StatusBadRequest, "INVALID_DOCUMENT",
					"The uploaded file is not a valid PDF", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to submit analysis", nil)
			}
			return
		}

		response.Accepted(w, analysis)
	}
}
