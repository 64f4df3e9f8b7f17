package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tris077/Atomera/internal/api/response"
	"github.com/tris077/Atomera/internal/artifacts"
	"github.com/tris077/Atomera/internal/store"
	"github.com/tris077/Atomera/pkg/models"
)

var validListStatuses = map[string]bool{
	models.JobStatusPending:   true,
	models.JobStatusRunning:   true,
	models.JobStatusCompleted: true,
	models.JobStatusFailed:    true,
}

func parseJobID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	return id, err == nil
}

// NewGetJobHandler returns the handler for GET /api/v1/jobs/{jobID}: the
// polling endpoint clients hit until the job reaches a terminal status.
func NewGetJobHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job id", nil)
			return
		}

		job, err := st.GetJob(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job", nil)
			return
		}

		response.JSON(w, job)
	}
}

// NewListJobsHandler returns the handler for GET /api/v1/jobs with optional
// status and limit query parameters.
func NewListJobsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		if status != "" && !validListStatuses[status] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of pending, running, completed, failed", nil)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
				return
			}
			limit = n
		}

		jobs, err := st.ListJobs(r.Context(), store.JobFilter{Status: status, Limit: limit})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list jobs", nil)
			return
		}
		if jobs == nil {
			jobs = []*models.Job{}
		}

		response.Collection(w, jobs, response.ListMeta{Count: len(jobs), Limit: limit})
	}
}

// NewDeleteJobHandler returns the handler for DELETE /api/v1/jobs/{jobID}.
// Only terminal jobs can be deleted; the record and all artifacts go
// together.
func NewDeleteJobHandler(st store.Store, art *artifacts.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job id", nil)
			return
		}

		job, err := st.GetJob(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job", nil)
			return
		}

		if !models.IsTerminalStatus(job.Status) {
			response.Error(w, http.StatusConflict, "JOB_ACTIVE",
				"Job is still "+job.Status+"; wait for it to finish", nil)
			return
		}

		if err := art.Remove(id); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove artifacts", nil)
			return
		}
		if err := st.DeleteJob(r.Context(), id); err != nil && !errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete job", nil)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
