package models

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	MaxSequenceLength = 10000
	MaxSMILESLength   = 1000
)

const validAminoAcids = "ACDEFGHIKLMNPQRSTVWY"

var smilesPattern = regexp.MustCompile(`^[A-Za-z0-9@+\-\[\]\(\)=#$%:\.]+$`)

// ProteinSequence is the protein half of a prediction request. Sequence is
// either an amino-acid string or a 4-character PDB id.
type ProteinSequence struct {
	ID       string `json:"id"`
	Sequence string `json:"sequence"`
}

// Validate normalizes the sequence (uppercase, trimmed) and checks it
// against the amino-acid alphabet. 4-character alphanumeric values pass
// through as PDB ids.
func (p *ProteinSequence) Validate() error {
	seq := strings.ToUpper(strings.TrimSpace(p.Sequence))
	if seq == "" {
		return fmt.Errorf("protein sequence cannot be empty")
	}
	if len(seq) > MaxSequenceLength {
		return fmt.Errorf("protein sequence exceeds %d characters", MaxSequenceLength)
	}

	p.Sequence = seq

	if len(seq) == 4 && isAlphanumeric(seq) {
		// PDB id passthrough
		return nil
	}

	var invalid []string
	seen := map[rune]bool{}
	for _, r := range seq {
		if !strings.ContainsRune(validAminoAcids, r) && !seen[r] {
			seen[r] = true
			invalid = append(invalid, string(r))
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return fmt.Errorf("invalid amino acid characters: %s (valid: %s)",
			strings.Join(invalid, ", "), validAminoAcids)
	}
	return nil
}

// LigandMolecule is the ligand half of a prediction request, described as a
// SMILES string.
type LigandMolecule struct {
	ID     string `json:"id"`
	SMILES string `json:"smiles"`
}

// Validate trims the SMILES string and checks it against the permitted
// chemical symbol charset. This is a structural sanity check, not a full
// SMILES grammar parse.
func (l *LigandMolecule) Validate() error {
	s := strings.TrimSpace(l.SMILES)
	if s == "" {
		return fmt.Errorf("SMILES string cannot be empty")
	}
	if len(s) > MaxSMILESLength {
		return fmt.Errorf("SMILES string exceeds %d characters", MaxSMILESLength)
	}
	if !smilesPattern.MatchString(s) {
		return fmt.Errorf("invalid SMILES string format")
	}
	l.SMILES = s
	return nil
}

// PredictionRequest is the immutable input snapshot a job is created from.
type PredictionRequest struct {
	Protein             ProteinSequence `json:"protein"`
	Ligand              LigandMolecule  `json:"ligand"`
	UseMSA              bool            `json:"use_msa"`
	DiffusionSamples    int             `json:"diffusion_samples,omitempty"`
	ConfidenceThreshold float64         `json:"confidence_threshold,omitempty"`
}

// Validate checks both molecules and fills default chain ids.
func (r *PredictionRequest) Validate() error {
	if r.Protein.ID == "" {
		r.Protein.ID = "A"
	}
	if r.Ligand.ID == "" {
		r.Ligand.ID = "B"
	}
	if err := r.Protein.Validate(); err != nil {
		return fmt.Errorf("protein: %w", err)
	}
	if err := r.Ligand.Validate(); err != nil {
		return fmt.Errorf("ligand: %w", err)
	}
	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be between 0 and 1")
	}
	return nil
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z') && !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
