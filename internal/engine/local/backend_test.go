package local_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tris077/Atomera/internal/artifacts"
	"github.com/tris077/Atomera/internal/config"
	"github.com/tris077/Atomera/internal/engine"
	"github.com/tris077/Atomera/internal/engine/local"
	"github.com/tris077/Atomera/pkg/boltz"
	"github.com/tris077/Atomera/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testRequest() models.PredictionRequest {
	return models.PredictionRequest{
		Protein: models.ProteinSequence{Sequence: "MALWMRLLPLLALLALWGPDPAAAFVNQHLCGSHLVEALYLVCGERGFFYTPKT"},
		Ligand:  models.LigandMolecule{SMILES: "CC(=O)OC1=CC=CC=C1C(=O)O"},
	}
}

// writeStubEngine writes a shell script that mimics the engine CLI: it reads
// the input path and --out_dir flag and produces the nested output layout.
func writeStubEngine(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boltz-stub")
	script := "#!/bin/sh\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// fullOutputStub emits affinity, confidence and one pose file.
const fullOutputStub = `
INPUT="$2"
OUT="$4"
BASE=$(basename "$INPUT" .yaml)
DIR="$OUT/boltz_results_$BASE/predictions/$BASE"
mkdir -p "$DIR"
printf '{"affinity_pred_value": -8.5, "affinity_probability_binary": 0.94}' > "$DIR/affinity_$BASE.json"
printf '{"confidence_score": 0.9, "ptm": 0.8, "iptm": 0.75}' > "$DIR/confidence_${BASE}_model_0.json"
printf 'data_pose' > "$DIR/${BASE}_model_0.cif"
`

func setup(t *testing.T, command string, timeout time.Duration) (*local.Backend, *artifacts.Store) {
	t.Helper()
	art, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)
	cfg := config.EngineConfig{
		Command:          command,
		Accelerator:      "cpu",
		Devices:          1,
		DiffusionSamples: 1,
		Timeout:          timeout,
		WorkDir:          t.TempDir(),
	}
	return local.NewBackend(cfg, art, testLogger()), art
}

func execute(t *testing.T, b *local.Backend) (*models.RawResult, error) {
	t.Helper()
	jobID := uuid.New()
	spec, err := boltz.EncodeInput(testRequest())
	require.NoError(t, err)

	var reports []float64
	return b.Execute(context.Background(), models.ExecutionInput{
		JobID:   jobID.String(),
		Request: testRequest(),
		Spec:    spec,
	}, func(pct float64) { reports = append(reports, pct) })
}

func TestExecute_FullArtifacts(t *testing.T) {
	stub := writeStubEngine(t, fullOutputStub)
	b, _ := setup(t, stub, time.Minute)

	raw, err := execute(t, b)
	require.NoError(t, err)

	assert.Equal(t, -8.5, *raw.AffinityPredValue)
	assert.Equal(t, 0.94, *raw.AffinityProbabilityBinary)
	assert.Equal(t, 0.9, *raw.ConfidenceScore)
	assert.Equal(t, 0.8, *raw.PTM)
	assert.Equal(t, 0.75, *raw.IPTM)
	assert.Len(t, raw.PoseFiles, 1)
	assert.Empty(t, raw.DegradedFields)
}

func TestExecute_PosesStoredAsArtifacts(t *testing.T) {
	stub := writeStubEngine(t, fullOutputStub)
	b, art := setup(t, stub, time.Minute)

	jobID := uuid.New()
	spec, err := boltz.EncodeInput(testRequest())
	require.NoError(t, err)

	raw, err := b.Execute(context.Background(), models.ExecutionInput{
		JobID: jobID.String(), Request: testRequest(), Spec: spec,
	}, func(float64) {})
	require.NoError(t, err)
	require.Len(t, raw.PoseFiles, 1)

	data, err := art.ReadFile(jobID, raw.PoseFiles[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("data_pose"), data)
}

func TestExecute_MissingSummariesDegrade(t *testing.T) {
	// Output tree exists but has no summary JSON and no poses.
	stub := writeStubEngine(t, `
INPUT="$2"
OUT="$4"
BASE=$(basename "$INPUT" .yaml)
mkdir -p "$OUT/boltz_results_$BASE/predictions/$BASE"
`)
	b, _ := setup(t, stub, time.Minute)

	raw, err := execute(t, b)
	require.NoError(t, err)

	assert.Equal(t, boltz.DefaultAffinityPredValue, *raw.AffinityPredValue)
	assert.Equal(t, boltz.DefaultConfidenceScore, *raw.ConfidenceScore)
	assert.Nil(t, raw.PTM)
	assert.ElementsMatch(t, raw.DegradedFields, []string{
		"affinity_pred_value", "affinity_probability_binary", "confidence_score",
	})
	assert.Empty(t, raw.PoseFiles)
}

func TestExecute_FallbackToFirstSubdir(t *testing.T) {
	// The per-input directory is named differently from the input base name.
	stub := writeStubEngine(t, `
OUT="$4"
DIR="$OUT/boltz_results_other/predictions/other_name"
mkdir -p "$DIR"
printf '{"affinity_pred_value": -6.0, "affinity_probability_binary": 0.5}' > "$DIR/affinity_other_name.json"
`)
	b, _ := setup(t, stub, time.Minute)

	raw, err := execute(t, b)
	require.NoError(t, err)

	// Affinity file is named for the directory, not the input, so affinity
	// degrades while the run itself succeeds via the first-subdir fallback.
	assert.NotNil(t, raw.AffinityPredValue)
}

func TestExecute_ProcessFailure(t *testing.T) {
	stub := writeStubEngine(t, `echo "CUDA out of memory" >&2; exit 2`)
	b, _ := setup(t, stub, time.Minute)

	_, err := execute(t, b)
	require.Error(t, err)
	assert.Equal(t, engine.FailureProcess, engine.KindOf(err))
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestExecute_Timeout(t *testing.T) {
	stub := writeStubEngine(t, `sleep 5`)
	b, _ := setup(t, stub, 100*time.Millisecond)

	_, err := execute(t, b)
	require.Error(t, err)
	assert.Equal(t, engine.FailureTimeout, engine.KindOf(err))
}

func TestExecute_NoOutput(t *testing.T) {
	stub := writeStubEngine(t, `mkdir -p "$4"`)
	b, _ := setup(t, stub, time.Minute)

	_, err := execute(t, b)
	require.Error(t, err)
	assert.Equal(t, engine.FailureProcess, engine.KindOf(err))
}
