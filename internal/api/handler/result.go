package handler

import (
	"errors"
	"net/http"

	"github.com/tris077/Atomera/internal/api/response"
	"github.com/tris077/Atomera/internal/artifacts"
	"github.com/tris077/Atomera/internal/engine"
	"github.com/tris077/Atomera/internal/store"
	"github.com/tris077/Atomera/pkg/models"
)

// NewGetResultHandler returns the handler for GET /api/v1/jobs/{jobID}/result.
// Completed jobs return the canonical result; failed jobs return a result
// shape carrying the error; live jobs return 409 with the current status so
// clients know to keep polling.
func NewGetResultHandler(st store.Store, art *artifacts.Store) http.HandlerFunc {
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

		switch job.Status {
		case models.JobStatusCompleted:
			res, err := engine.LoadResult(art, id)
			if errors.Is(err, artifacts.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Result no longer available", nil)
				return
			}
			if err != nil {
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load result", nil)
				return
			}
			response.JSON(w, res)

		case models.JobStatusFailed:
			response.JSON(w, &models.CanonicalResult{
				JobID:        job.ID.String(),
				Status:       job.Status,
				ErrorMessage: job.ErrorMessage,
				Provenance:   models.ProvenanceEngine,
			})

		default:
			response.Error(w, http.StatusConflict, "JOB_NOT_COMPLETE",
				"Job is still "+job.Status, map[string]any{
					"status":   job.Status,
					"progress": job.Progress,
				})
		}
	}
}
