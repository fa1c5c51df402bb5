package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/adityakurhade/finsight/internal/api/middleware"
	"github.com/adityakurhade/finsight/internal/api/response"
)

// Dependencies holds all handler dependencies for the router.
type Dependencies struct {
	HealthHandler http.HandlerFunc

	AnalyzeHandler        http.HandlerFunc
	StatusHandler         http.HandlerFunc
	ListAnalysesHandler   http.HandlerFunc
	StatsHandler          http.HandlerFunc
	DeleteAnalysisHandler http.HandlerFunc

	CreateUserHandler http.HandlerFunc
	GetUserHandler    http.HandlerFunc
	ListUsersHandler  http.HandlerFunc
	DeleteUserHandler http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Route("/api/v1/analyses", func(r chi.Router) {
		r.Post("/", orNotImplemented(deps.AnalyzeHandler))
		r.Get("/", orNotImplemented(deps.ListAnalysesHandler))
		r.Get("/stats", orNotImplemented(deps.StatsHandler))
		r.Get("/{taskID}", orNotImplemented(deps.StatusHandler))
		r.Delete("/{taskID}", orNotImplemented(deps.DeleteAnalysisHandler))
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/", orNotImplemented(deps.CreateUserHandler))
		r.Get("/", orNotImplemented(deps.ListUsersHandler))
		r.Get("/{userID}", orNotImplemented(deps.GetUserHandler))
		r.Delete("/{userID}", orNotImplemented(deps.DeleteUserHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
