package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tris077/Atomera/internal/artifacts"
	"github.com/tris077/Atomera/internal/config"
	"github.com/tris077/Atomera/internal/engine"
	"github.com/tris077/Atomera/pkg/boltz"
	"github.com/tris077/Atomera/pkg/models"
)

const BackendName = "local"

// stderrTailLimit bounds how much process stderr ends up in error messages.
const stderrTailLimit = 2048

// Backend runs Boltz-2 as a subprocess on the host. Each execution gets its
// own scratch directory under the configured work dir; parsed artifacts are
// copied into the artifact store before the scratch is removed.
type Backend struct {
	cfg       config.EngineConfig
	artifacts *artifacts.Store
	logger    *slog.Logger
}

func NewBackend(cfg config.EngineConfig, art *artifacts.Store, logger *slog.Logger) *Backend {
	return &Backend{cfg: cfg, artifacts: art, logger: logger}
}

func (b *Backend) Name() string { return BackendName }

func (b *Backend) Execute(ctx context.Context, in models.ExecutionInput, report models.ProgressFunc) (*models.RawResult, error) {
	log := b.logger.With("job_id", in.JobID)

	scratch, err := os.MkdirTemp(b.cfg.WorkDir, "run_"+in.JobID+"_")
	if err != nil {
		if err := os.MkdirAll(b.cfg.WorkDir, 0o755); err != nil {
			return nil, engine.NewFailure(engine.FailureStorage, "creating work dir", err)
		}
		scratch, err = os.MkdirTemp(b.cfg.WorkDir, "run_"+in.JobID+"_")
		if err != nil {
			return nil, engine.NewFailure(engine.FailureStorage, "creating scratch dir", err)
		}
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Warn("removing scratch dir", "dir", scratch, "error", err)
		}
	}()

	inputName := "input_" + in.JobID
	inputPath := filepath.Join(scratch, inputName+".yaml")
	if err := os.WriteFile(inputPath, in.Spec, 0o644); err != nil {
		return nil, engine.NewFailure(engine.FailureStorage, "writing input spec", err)
	}
	report(5)

	outDir := filepath.Join(scratch, "out")
	if err := b.run(ctx, inputPath, outDir, report, log); err != nil {
		return nil, err
	}
	report(90)

	predDir, err := findPredictionsDir(outDir, inputName)
	if err != nil {
		return nil, engine.NewFailure(engine.FailureProcess, "locating prediction output", err)
	}

	raw, err := b.collect(predDir, inputName, in.JobID, log)
	if err != nil {
		return nil, err
	}
	report(100)
	return raw, nil
}

// run invokes the engine CLI and classifies its failure modes.
func (b *Backend) run(ctx context.Context, inputPath, outDir string, report models.ProgressFunc, log *slog.Logger) error {
	runCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	args := []string{
		"predict", inputPath,
		"--out_dir", outDir,
		"--devices", strconv.Itoa(b.cfg.Devices),
		"--accelerator", b.accelerator(),
		"--diffusion_samples", strconv.Itoa(b.cfg.DiffusionSamples),
	}
	if b.cfg.UseMSAServer {
		args = append(args, "--use_msa_server")
	}

	cmd := exec.CommandContext(runCtx, b.cfg.Command, args...)
	cmd.Env = b.env()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Info("starting engine process", "command", b.cfg.Command, "accelerator", b.accelerator())
	report(10)

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return engine.NewFailure(engine.FailureTimeout,
			fmt.Sprintf("engine run exceeded %s", b.cfg.Timeout), runCtx.Err())
	}
	return engine.NewFailure(engine.FailureProcess,
		fmt.Sprintf("engine exited: %s", stderrTail(stderr.Bytes())), err)
}

func (b *Backend) accelerator() string {
	if b.cfg.Accelerator == "auto" {
		return "gpu"
	}
	return b.cfg.Accelerator
}

// env pins thread counts in cpu mode so a single run cannot saturate the
// host the API server shares.
func (b *Backend) env() []string {
	env := os.Environ()
	if b.accelerator() == "cpu" {
		env = append(env,
			"OMP_NUM_THREADS="+strconv.Itoa(b.cfg.Devices),
			"MKL_NUM_THREADS="+strconv.Itoa(b.cfg.Devices),
			"MALLOC_ARENA_MAX=2",
		)
	}
	return env
}

// collect parses the summary artifacts and copies pose structures into the
// artifact store. Missing or unparsable summaries degrade to documented
// defaults rather than failing the run.
func (b *Backend) collect(predDir, inputName, jobID string, log *slog.Logger) (*models.RawResult, error) {
	raw := &models.RawResult{}

	affinity, degraded := b.readAffinity(predDir, inputName, log)
	raw.AffinityPredValue = affinity.AffinityPredValue
	raw.AffinityProbabilityBinary = affinity.AffinityProbabilityBinary
	raw.DegradedFields = append(raw.DegradedFields, degraded...)

	confidence, degraded := b.readConfidence(predDir, inputName, log)
	raw.ConfidenceScore = confidence.ConfidenceScore
	raw.PTM = confidence.PTM
	raw.IPTM = confidence.IPTM
	raw.DegradedFields = append(raw.DegradedFields, degraded...)

	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, engine.NewFailure(engine.FailureValidation, "invalid job id", err)
	}
	poses, err := copyPoses(b.artifacts, id, predDir)
	if err != nil {
		return nil, engine.NewFailure(engine.FailureStorage, "storing pose files", err)
	}
	raw.PoseFiles = poses
	return raw, nil
}

func (b *Backend) readAffinity(predDir, inputName string, log *slog.Logger) (*boltz.AffinitySummary, []string) {
	path := filepath.Join(predDir, "affinity_"+inputName+".json")
	data, err := os.ReadFile(path)
	if err == nil {
		if s, perr := boltz.ParseAffinity(data); perr == nil {
			return s, nil
		} else {
			err = perr
		}
	}
	log.Warn("affinity summary unavailable, using defaults", "path", path, "error", err)
	return boltz.DefaultAffinity()
}

func (b *Backend) readConfidence(predDir, inputName string, log *slog.Logger) (*boltz.ConfidenceSummary, []string) {
	path := filepath.Join(predDir, "confidence_"+inputName+"_model_0.json")
	data, err := os.ReadFile(path)
	if err == nil {
		if s, perr := boltz.ParseConfidence(data); perr == nil {
			return s, nil
		} else {
			err = perr
		}
	}
	log.Warn("confidence summary unavailable, using defaults", "path", path, "error", err)
	return boltz.DefaultConfidence()
}

// findPredictionsDir locates the engine's per-input output directory. The
// engine nests output as <out>/boltz_results_<name>/predictions/<name>; a
// directory matching the input name wins, otherwise the first subdirectory.
func findPredictionsDir(outDir, inputName string) (string, error) {
	var predRoots []string
	err := filepath.WalkDir(outDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == "predictions" {
			predRoots = append(predRoots, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking output dir: %w", err)
	}
	if len(predRoots) == 0 {
		return "", errors.New("no predictions directory in engine output")
	}

	root := predRoots[0]
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("reading predictions dir: %w", err)
	}
	var first string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == inputName {
			return filepath.Join(root, e.Name()), nil
		}
		if first == "" {
			first = e.Name()
		}
	}
	if first == "" {
		return "", errors.New("predictions directory is empty")
	}
	return filepath.Join(root, first), nil
}

// copyPoses moves .cif structure files into the job's artifact directory
// and returns their names sorted by os.ReadDir order.
func copyPoses(art *artifacts.Store, jobID uuid.UUID, predDir string) ([]string, error) {
	entries, err := os.ReadDir(predDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cif") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(predDir, e.Name()))
		if err != nil {
			return nil, err
		}
		if err := art.WriteFile(jobID, e.Name(), data); err != nil {
			return nil, err
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func stderrTail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrTailLimit {
		s = s[len(s)-stderrTailLimit:]
	}
	if s == "" {
		return "no stderr output"
	}
	return s
}
