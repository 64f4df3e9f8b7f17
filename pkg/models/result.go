package models

// Provenance values recorded on a CanonicalResult. Callers use this field to
// tell genuine engine output from degraded or substituted values.
const (
	ProvenanceEngine      = "engine"
	ProvenanceDegraded    = "degraded"
	ProvenancePlaceholder = "placeholder"
)

// RawResult is the adapter-level output of one execution, before
// normalization. Scalar fields are pointers: a nil field means the backend
// did not produce that value, and it stays unset in the canonical result.
type RawResult struct {
	AffinityPredValue         *float64
	AffinityProbabilityBinary *float64
	ConfidenceScore           *float64
	PTM                       *float64
	IPTM                      *float64
	PoseFiles                 []string
	// DegradedFields names the scalar fields that were filled from
	// engine-documented defaults because the corresponding artifact was
	// missing or unparsable.
	DegradedFields []string
}

// CanonicalResult is the one result shape both backends converge on. Apart
// from Provenance, callers cannot tell which backend produced it.
type CanonicalResult struct {
	JobID                     string   `json:"job_id"`
	Status                    string   `json:"status"`
	AffinityPredValue         *float64 `json:"affinity_pred_value,omitempty"`
	AffinityProbabilityBinary *float64 `json:"affinity_probability_binary,omitempty"`
	ConfidenceScore           *float64 `json:"confidence_score,omitempty"`
	PTM                       *float64 `json:"ptm,omitempty"`
	IPTM                      *float64 `json:"iptm,omitempty"`
	PosesGenerated            int      `json:"poses_generated"`
	PoseFiles                 []string `json:"pose_files,omitempty"`
	ProcessingTimeSeconds     float64  `json:"processing_time_seconds"`
	ErrorMessage              *string  `json:"error_message,omitempty"`
	Provenance                string   `json:"provenance"`
	DegradedFields            []string `json:"degraded_fields,omitempty"`
}
