package engine

import (
	"time"

	"github.com/tris077/Atomera/pkg/boltz"
	"github.com/tris077/Atomera/pkg/models"
)

// Normalize converts a backend's raw output into the canonical result shape.
// Provenance is ProvenanceEngine unless the backend had to substitute any
// documented default, in which case it is ProvenanceDegraded and the
// substituted fields are listed.
func Normalize(jobID string, raw *models.RawResult, elapsed time.Duration) *models.CanonicalResult {
	res := &models.CanonicalResult{
		JobID:                     jobID,
		Status:                    models.JobStatusCompleted,
		AffinityPredValue:         raw.AffinityPredValue,
		AffinityProbabilityBinary: raw.AffinityProbabilityBinary,
		ConfidenceScore:           raw.ConfidenceScore,
		PTM:                       raw.PTM,
		IPTM:                      raw.IPTM,
		PosesGenerated:            len(raw.PoseFiles),
		PoseFiles:                 raw.PoseFiles,
		ProcessingTimeSeconds:     elapsed.Seconds(),
		Provenance:                models.ProvenanceEngine,
	}
	if len(raw.DegradedFields) > 0 {
		res.Provenance = models.ProvenanceDegraded
		res.DegradedFields = raw.DegradedFields
	}
	return res
}

// Placeholder builds a synthetic completed result from engine-documented
// defaults. Used when a recoverable local failure is downgraded; the
// provenance and degraded-field list make the substitution visible.
func Placeholder(jobID string, kind FailureKind, message string, elapsed time.Duration) *models.CanonicalResult {
	affinity := boltz.DefaultAffinityPredValue
	probability := boltz.DefaultAffinityProbabilityBinary
	confidence := boltz.DefaultConfidenceScore
	msg := string(kind) + ": " + message
	return &models.CanonicalResult{
		JobID:                     jobID,
		Status:                    models.JobStatusCompleted,
		AffinityPredValue:         &affinity,
		AffinityProbabilityBinary: &probability,
		ConfidenceScore:           &confidence,
		PosesGenerated:            0,
		ProcessingTimeSeconds:     elapsed.Seconds(),
		ErrorMessage:              &msg,
		Provenance:                models.ProvenancePlaceholder,
		DegradedFields: []string{
			"affinity_pred_value",
			"affinity_probability_binary",
			"confidence_score",
		},
	}
}
