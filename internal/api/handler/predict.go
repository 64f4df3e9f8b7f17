package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/tris077/Atomera/internal/api/response"
	"github.com/tris077/Atomera/internal/engine"
	"github.com/tris077/Atomera/internal/store"
	"github.com/tris077/Atomera/pkg/models"
)

// Enqueuer hands accepted jobs to the dispatch worker pool.
type Enqueuer interface {
	Enqueue(job *models.Job) error
}

// NewPredictHandler returns the handler for POST /api/v1/predict. A valid
// request creates a pending job, enqueues it, and returns 202 with the job
// id for polling.
func NewPredictHandler(st store.Store, queue Enqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PredictionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if err := req.Validate(); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		job := &models.Job{
			ID:      uuid.New(),
			Status:  models.JobStatusPending,
			Request: req,
		}
		if err := st.CreateJob(r.Context(), job); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create job", nil)
			return
		}

		if err := queue.Enqueue(job); err != nil {
			if errors.Is(err, engine.ErrQueueFull) {
				// Roll the record back so the client can retry cleanly.
				_ = st.DeleteJob(r.Context(), job.ID)
				w.Header().Set("Retry-After", "30")
				response.Error(w, http.StatusServiceUnavailable,
					"QUEUE_FULL", "Prediction queue is full, try again later", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to enqueue job", nil)
			return
		}

		response.Accepted(w, map[string]any{
			"job_id": job.ID,
			"status": job.Status,
		})
	}
}
