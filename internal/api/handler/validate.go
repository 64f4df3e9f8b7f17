package handler

import (
	"encoding/json"
	"net/http"

	"github.com/tris077/Atomera/internal/api/response"
	"github.com/tris077/Atomera/pkg/models"
)

// NewValidateProteinHandler returns the handler for
// POST /api/v1/validate/protein: checks a sequence without creating a job.
func NewValidateProteinHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Sequence string `json:"sequence"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		p := models.ProteinSequence{Sequence: req.Sequence}
		if err := p.Validate(); err != nil {
			response.JSON(w, map[string]any{
				"valid": false,
				"error": err.Error(),
			})
			return
		}
		response.JSON(w, map[string]any{
			"valid":      true,
			"normalized": p.Sequence,
			"length":     len(p.Sequence),
		})
	}
}

// NewValidateLigandHandler returns the handler for
// POST /api/v1/validate/ligand.
func NewValidateLigandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SMILES string `json:"smiles"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		l := models.LigandMolecule{SMILES: req.SMILES}
		if err := l.Validate(); err != nil {
			response.JSON(w, map[string]any{
				"valid": false,
				"error": err.Error(),
			})
			return
		}
		response.JSON(w, map[string]any{
			"valid":      true,
			"normalized": l.SMILES,
		})
	}
}
