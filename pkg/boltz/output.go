package boltz

import (
	"encoding/json"
	"fmt"
)

// Engine-documented defaults, substituted when a summary artifact is missing
// or unparsable. Every substitution is reported so the caller can mark the
// field as degraded instead of passing it off as genuine output.
const (
	DefaultAffinityPredValue         = -7.2
	DefaultAffinityProbabilityBinary = 0.89
	DefaultConfidenceScore           = 0.85
)

// AffinitySummary mirrors the engine's affinity_<name>.json artifact,
// including the ensemble variants.
type AffinitySummary struct {
	AffinityPredValue          *float64 `json:"affinity_pred_value"`
	AffinityProbabilityBinary  *float64 `json:"affinity_probability_binary"`
	AffinityPredValue1         *float64 `json:"affinity_pred_value1,omitempty"`
	AffinityProbabilityBinary1 *float64 `json:"affinity_probability_binary1,omitempty"`
	AffinityPredValue2         *float64 `json:"affinity_pred_value2,omitempty"`
	AffinityProbabilityBinary2 *float64 `json:"affinity_probability_binary2,omitempty"`
}

// ConfidenceSummary mirrors the engine's confidence_<name>_model_0.json
// artifact. Per-chain maps are optional.
type ConfidenceSummary struct {
	ConfidenceScore *float64                      `json:"confidence_score"`
	PTM             *float64                      `json:"ptm,omitempty"`
	IPTM            *float64                      `json:"iptm,omitempty"`
	LigandIPTM      *float64                      `json:"ligand_iptm,omitempty"`
	ProteinIPTM     *float64                      `json:"protein_iptm,omitempty"`
	ComplexPLDDT    *float64                      `json:"complex_plddt,omitempty"`
	ComplexIPLDDT   *float64                      `json:"complex_iplddt,omitempty"`
	ChainsPTM       map[string]float64            `json:"chains_ptm,omitempty"`
	PairChainsIPTM  map[string]map[string]float64 `json:"pair_chains_iptm,omitempty"`
}

// ParseAffinity decodes an affinity summary artifact.
func ParseAffinity(data []byte) (*AffinitySummary, error) {
	var s AffinitySummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing affinity summary: %w", err)
	}
	return &s, nil
}

// ParseConfidence decodes a confidence summary artifact.
func ParseConfidence(data []byte) (*ConfidenceSummary, error) {
	var s ConfidenceSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing confidence summary: %w", err)
	}
	return &s, nil
}

// DefaultAffinity returns an affinity summary filled with the documented
// defaults, with the names of the substituted fields.
func DefaultAffinity() (*AffinitySummary, []string) {
	av := DefaultAffinityPredValue
	pb := DefaultAffinityProbabilityBinary
	return &AffinitySummary{
		AffinityPredValue:         &av,
		AffinityProbabilityBinary: &pb,
	}, []string{"affinity_pred_value", "affinity_probability_binary"}
}

// DefaultConfidence returns a confidence summary filled with the documented
// default, with the names of the substituted fields.
func DefaultConfidence() (*ConfidenceSummary, []string) {
	cs := DefaultConfidenceScore
	return &ConfidenceSummary{ConfidenceScore: &cs}, []string{"confidence_score"}
}
