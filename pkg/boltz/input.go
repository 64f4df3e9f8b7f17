// Package boltz implements the Boltz-2 input-spec codec and output-artifact
// parsers shared by the local and remote execution adapters.
package boltz

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/tris077/Atomera/pkg/models"
)

// InputSpec is the declarative document the prediction engine consumes.
// Field order is fixed by the struct so encoding is deterministic: the same
// request always produces byte-identical YAML.
type InputSpec struct {
	Version    int        `yaml:"version"`
	Sequences  []Sequence `yaml:"sequences"`
	Properties []Property `yaml:"properties"`
}

// Sequence holds exactly one of Protein or Ligand.
type Sequence struct {
	Protein *ProteinEntry `yaml:"protein,omitempty"`
	Ligand  *LigandEntry  `yaml:"ligand,omitempty"`
}

type ProteinEntry struct {
	ID       string `yaml:"id"`
	Sequence string `yaml:"sequence"`
}

type LigandEntry struct {
	ID     string `yaml:"id"`
	SMILES string `yaml:"smiles"`
}

type Property struct {
	Affinity *AffinityProperty `yaml:"affinity,omitempty"`
}

type AffinityProperty struct {
	Binder string `yaml:"binder"`
}

// EncodeInput serializes a validated request into the engine's input
// document. The request is validated first; a rejected request never
// reaches an execution backend.
func EncodeInput(req models.PredictionRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	spec := InputSpec{
		Version: 1,
		Sequences: []Sequence{
			{Protein: &ProteinEntry{ID: req.Protein.ID, Sequence: req.Protein.Sequence}},
			{Ligand: &LigandEntry{ID: req.Ligand.ID, SMILES: req.Ligand.SMILES}},
		},
		Properties: []Property{
			{Affinity: &AffinityProperty{Binder: req.Ligand.ID}},
		},
	}

	out, err := yaml.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshaling input spec: %w", err)
	}
	return out, nil
}

// ParseInput decodes an input document back into its spec form.
func ParseInput(data []byte) (*InputSpec, error) {
	var spec InputSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing input spec: %w", err)
	}
	if spec.Version != 1 {
		return nil, fmt.Errorf("unsupported input spec version %d", spec.Version)
	}
	return &spec, nil
}

// ProteinSequence returns the first protein entry, if any.
func (s *InputSpec) ProteinSequence() (ProteinEntry, bool) {
	for _, seq := range s.Sequences {
		if seq.Protein != nil {
			return *seq.Protein, true
		}
	}
	return ProteinEntry{}, false
}

// LigandSMILES returns the first ligand entry, if any.
func (s *InputSpec) LigandSMILES() (LigandEntry, bool) {
	for _, seq := range s.Sequences {
		if seq.Ligand != nil {
			return *seq.Ligand, true
		}
	}
	return LigandEntry{}, false
}

// Fingerprint returns a stable hash of an encoded input spec, used for
// cache keys and artifact naming.
func Fingerprint(spec []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(spec))
}
