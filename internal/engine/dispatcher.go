package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tris077/Atomera/internal/artifacts"
	"github.com/tris077/Atomera/internal/cache"
	"github.com/tris077/Atomera/internal/config"
	"github.com/tris077/Atomera/internal/store"
	"github.com/tris077/Atomera/pkg/boltz"
	"github.com/tris077/Atomera/pkg/models"
)

// Progress bands per phase. Each phase reports into its own slice of the
// 0-100 range so a poller always sees monotonic, phase-meaningful values.
const (
	progressSpecBuilt      = 15.0
	progressExecuteCeiling = 90.0
	progressRetrieved      = 95.0
)

// ResultFileName is the artifact under which the canonical result is kept.
const ResultFileName = "result.json"

const (
	jobStatusTTL   = 10 * time.Minute
	resultCacheTTL = 1 * time.Hour
)

// Dispatcher owns the lifecycle of one prediction job: build the engine
// input, hand it to the selected backend, normalize the output, persist the
// result, and keep the job record's status and progress current throughout.
type Dispatcher struct {
	store     store.Store
	cache     cache.Cache
	artifacts *artifacts.Store
	backend   models.ExecutionBackend
	cfg       config.DispatchConfig
	logger    *slog.Logger
}

func NewDispatcher(st store.Store, c cache.Cache, art *artifacts.Store, backend models.ExecutionBackend, cfg config.DispatchConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     st,
		cache:     c,
		artifacts: art,
		backend:   backend,
		cfg:       cfg,
		logger:    logger,
	}
}

// Process runs one job to a terminal state. It never returns an error for
// job-level failures (those are recorded on the job); only the record write
// that would report them can surface an error to the worker loop.
func (d *Dispatcher) Process(ctx context.Context, job *models.Job) {
	log := d.logger.With("job_id", job.ID, "backend", d.backend.Name())
	started := time.Now()

	spec, err := boltz.EncodeInput(job.Request)
	if err != nil {
		d.fail(ctx, job.ID, NewFailure(FailureValidation, "building engine input", err), started, log)
		return
	}
	if err := d.markRunning(ctx, job.ID, progressSpecBuilt); err != nil {
		log.Error("marking job running", "error", err)
		return
	}

	fingerprint := boltz.Fingerprint(spec)
	if res, ok := d.cachedResult(ctx, fingerprint, job.ID); ok {
		log.Info("result cache hit", "fingerprint", fingerprint)
		d.complete(ctx, job.ID, res, log)
		return
	}

	raw, err := d.backend.Execute(ctx, models.ExecutionInput{
		JobID:   job.ID.String(),
		Request: job.Request,
		Spec:    spec,
	}, d.progressSink(ctx, job.ID, log))
	if err != nil {
		failure := Classify(err, "executing prediction")
		if d.shouldFallback(failure.Kind) {
			log.Warn("downgrading recoverable failure to placeholder result",
				"kind", failure.Kind, "error", failure.Message)
			res := Placeholder(job.ID.String(), failure.Kind, failure.Message, time.Since(started))
			d.complete(ctx, job.ID, res, log)
			return
		}
		d.fail(ctx, job.ID, failure, started, log)
		return
	}

	d.updateProgress(ctx, job.ID, progressRetrieved, log)

	res := Normalize(job.ID.String(), raw, time.Since(started))
	d.cacheResult(ctx, fingerprint, res)
	d.complete(ctx, job.ID, res, log)
	log.Info("job completed",
		"provenance", res.Provenance,
		"poses", res.PosesGenerated,
		"elapsed_s", res.ProcessingTimeSeconds)
}

// shouldFallback: the placeholder downgrade applies only to recoverable
// failure kinds, only on the local backend, and only when configured on.
func (d *Dispatcher) shouldFallback(kind FailureKind) bool {
	if d.cfg.Strict || !d.cfg.FallbackPlaceholder {
		return false
	}
	if d.backend.Name() != "local" {
		return false
	}
	return FallbackEligible(kind)
}

// progressSink maps backend-reported 0-100 into the execution band. Store
// updates enforce monotonicity, so late or out-of-order reports are safe.
func (d *Dispatcher) progressSink(ctx context.Context, jobID uuid.UUID, log *slog.Logger) models.ProgressFunc {
	return func(pct float64) {
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		mapped := progressSpecBuilt + pct/100*(progressExecuteCeiling-progressSpecBuilt)
		d.updateProgress(ctx, jobID, mapped, log)
	}
}

func (d *Dispatcher) markRunning(ctx context.Context, jobID uuid.UUID, progress float64) error {
	if err := d.store.UpdateJob(ctx, jobID, models.JobStatusRunning, progress); err != nil {
		return fmt.Errorf("updating job %s: %w", jobID, err)
	}
	d.mirrorStatus(ctx, jobID, models.JobStatusRunning)
	return nil
}

func (d *Dispatcher) updateProgress(ctx context.Context, jobID uuid.UUID, progress float64, log *slog.Logger) {
	if err := d.store.UpdateJob(ctx, jobID, models.JobStatusRunning, progress); err != nil {
		log.Warn("progress update failed", "progress", progress, "error", err)
	}
}

func (d *Dispatcher) complete(ctx context.Context, jobID uuid.UUID, res *models.CanonicalResult, log *slog.Logger) {
	data, err := json.Marshal(res)
	if err != nil {
		d.fail(ctx, jobID, NewFailure(FailureStorage, "encoding result", err), time.Now(), log)
		return
	}
	if err := d.artifacts.WriteFile(jobID, ResultFileName, data); err != nil {
		d.fail(ctx, jobID, NewFailure(FailureStorage, "persisting result", err), time.Now(), log)
		return
	}
	if err := d.store.UpdateJob(ctx, jobID, models.JobStatusCompleted, 100); err != nil {
		log.Error("marking job completed", "error", err)
		return
	}
	d.mirrorStatus(ctx, jobID, models.JobStatusCompleted)
}

func (d *Dispatcher) fail(ctx context.Context, jobID uuid.UUID, failure *Failure, started time.Time, log *slog.Logger) {
	log.Error("job failed", "kind", failure.Kind, "error", failure.Error(), "elapsed", time.Since(started))
	err := d.store.UpdateJob(ctx, jobID, models.JobStatusFailed, 0,
		store.WithErrorMessage(failure.Error()))
	if err != nil {
		log.Error("marking job failed", "error", err)
		return
	}
	d.mirrorStatus(ctx, jobID, models.JobStatusFailed)
}

// mirrorStatus keeps the cached status in step with the record. Cache errors
// are logged and ignored; the store remains authoritative.
func (d *Dispatcher) mirrorStatus(ctx context.Context, jobID uuid.UUID, status string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.SetJobStatus(ctx, jobID, status, jobStatusTTL); err != nil {
		d.logger.Warn("status cache write failed", "job_id", jobID, "error", err)
	}
}

func (d *Dispatcher) cachedResult(ctx context.Context, fingerprint string, jobID uuid.UUID) (*models.CanonicalResult, bool) {
	if d.cache == nil {
		return nil, false
	}
	data, found, err := d.cache.Get(ctx, cache.ResultKey(fingerprint))
	if err != nil || !found {
		return nil, false
	}
	var res models.CanonicalResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false
	}
	if err := d.copyPoseArtifacts(res.JobID, jobID, res.PoseFiles); err != nil {
		d.logger.Warn("cached result artifacts unavailable, re-running", "error", err)
		return nil, false
	}
	res.JobID = jobID.String()
	return &res, true
}

// copyPoseArtifacts copies the pose files a cached result names from the
// original job's artifact directory into the new job's, so the served
// result never references files the poses endpoint cannot find.
func (d *Dispatcher) copyPoseArtifacts(fromID string, to uuid.UUID, files []string) error {
	if len(files) == 0 {
		return nil
	}
	from, err := uuid.Parse(fromID)
	if err != nil {
		return fmt.Errorf("cached result has invalid job id %q", fromID)
	}
	for _, name := range files {
		data, err := d.artifacts.ReadFile(from, name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if err := d.artifacts.WriteFile(to, name, data); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

func (d *Dispatcher) cacheResult(ctx context.Context, fingerprint string, res *models.CanonicalResult) {
	if d.cache == nil || res.Provenance != models.ProvenanceEngine {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, cache.ResultKey(fingerprint), data, resultCacheTTL); err != nil {
		d.logger.Warn("result cache write failed", "error", err)
	}
}

// LoadResult reads a completed job's canonical result back from the
// artifact store.
func (d *Dispatcher) LoadResult(jobID uuid.UUID) (*models.CanonicalResult, error) {
	return LoadResult(d.artifacts, jobID)
}

// LoadResult reads the persisted canonical result for a job.
func LoadResult(art *artifacts.Store, jobID uuid.UUID) (*models.CanonicalResult, error) {
	data, err := art.ReadFile(jobID, ResultFileName)
	if err != nil {
		return nil, err
	}
	var res models.CanonicalResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decoding result for job %s: %w", jobID, err)
	}
	return &res, nil
}
