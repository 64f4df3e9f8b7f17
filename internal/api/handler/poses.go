package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tris077/Atomera/internal/api/response"
	"github.com/tris077/Atomera/internal/artifacts"
	"github.com/tris077/Atomera/internal/engine"
)

// NewGetPoseHandler returns the handler for
// GET /api/v1/jobs/{jobID}/poses/{file}: downloads one predicted structure.
func NewGetPoseHandler(art *artifacts.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job id", nil)
			return
		}
		name := chi.URLParam(r, "file")

		data, err := art.ReadFile(id, name)
		if errors.Is(err, artifacts.ErrInvalidName) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid file name", nil)
			return
		}
		if errors.Is(err, artifacts.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Pose file not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read pose file", nil)
			return
		}

		w.Header().Set("Content-Type", "chemical/x-cif")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// NewListPosesHandler returns the handler for GET /api/v1/jobs/{jobID}/poses.
func NewListPosesHandler(art *artifacts.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job id", nil)
			return
		}

		names, err := art.List(id)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list pose files", nil)
			return
		}

		// The canonical result lives alongside poses; it is not a pose.
		poses := make([]string, 0, len(names))
		for _, n := range names {
			if n != engine.ResultFileName {
				poses = append(poses, n)
			}
		}
		response.JSON(w, map[string]any{"files": poses})
	}
}
