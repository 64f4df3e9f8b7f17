package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/tris077/Atomera/internal/api/middleware"
	"github.com/tris077/Atomera/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	PredictHandler   http.HandlerFunc
	GetJobHandler    http.HandlerFunc
	ListJobsHandler  http.HandlerFunc
	DeleteJobHandler http.HandlerFunc
	GetResultHandler http.HandlerFunc
	ListPosesHandler http.HandlerFunc
	GetPoseHandler   http.HandlerFunc

	ValidateProtein http.HandlerFunc
	ValidateLigand  http.HandlerFunc
	ExamplesHandler http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/predict", orNotImplemented(deps.PredictHandler))

		r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobsHandler))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))
		r.Delete("/api/v1/jobs/{jobID}", orNotImplemented(deps.DeleteJobHandler))
		r.Get("/api/v1/jobs/{jobID}/result", orNotImplemented(deps.GetResultHandler))
		r.Get("/api/v1/jobs/{jobID}/poses", orNotImplemented(deps.ListPosesHandler))
		r.Get("/api/v1/jobs/{jobID}/poses/{file}", orNotImplemented(deps.GetPoseHandler))

		r.Post("/api/v1/validate/protein", orNotImplemented(deps.ValidateProtein))
		r.Post("/api/v1/validate/ligand", orNotImplemented(deps.ValidateLigand))
		r.Get("/api/v1/examples", orNotImplemented(deps.ExamplesHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
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
