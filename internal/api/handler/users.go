package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adityakurhade/finsight/internal/api/response"
	"github.com/adityakurhade/finsight/internal/store"
	"github.com/adityakurhade/finsight/pkg/models"
)

// UserDirectory exposes user records. The store satisfies it directly.
type UserDirectory interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// NewCreateUserHandler returns the handler for POST /api/v1/users.
func NewCreateUserHandler(dir UserDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string  `json:"username"`
			Email    *string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "username is required", nil)
			return
		}

		user := &models.User{
			ID:        uuid.New(),
			Username:  req.Username,
			Email:     req.Email,
			CreatedAt: time.Now().UTC(),
		}
		if err := dir.CreateUser(r.Context(), user); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "DUPLICATE", "A user with this username or email already exists", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user", nil)
			return
		}

		response.Created(w, user)
	}
}

// NewGetUserHandler returns the handler for GET /api/v1/users/{userID}.
func NewGetUserHandler(dir UserDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "userID must be a valid UUID", nil)
			return
		}

		user, err := dir.GetUser(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user", nil)
			return
		}
		response.JSON(w, user)
	}
}

// NewListUsersHandler returns the handler for GET /api/v1/users.
func NewListUsersHandler(dir UserDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := parsePositiveInt(q.Get("page"), 1)
		limit := parsePositiveInt(q.Get("limit"), 20)

		users, err := dir.ListUsers(r.Context(), limit, (page-1)*limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users", nil)
			return
		}
		response.JSON(w, users)
	}
}

// NewDeleteUserHandler returns the handler for DELETE /api/v1/users/{userID}.
// Analyses submitted by the user survive with their user reference cleared.
func NewDeleteUserHandler(dir UserDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "userID must be a valid UUID", nil)
			return
		}

		if err := dir.DeleteUser(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete user", nil)
			return
		}
		response.NoContent(w)
	}
}
