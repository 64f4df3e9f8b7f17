package runpod

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tris077/Atomera/internal/artifacts"
	"github.com/tris077/Atomera/internal/config"
	"github.com/tris077/Atomera/internal/engine"
	"github.com/tris077/Atomera/pkg/models"
)

const BackendName = "runpod"

// maxPollErrors bounds how many consecutive failed polls are tolerated
// before the job is given up as unreachable.
const maxPollErrors = 3

// Recorder is called once the remote service assigns a job id, so the
// caller can persist it for later cancellation or audit.
type Recorder func(ctx context.Context, jobID string, remoteID string)

// Backend executes predictions on a RunPod serverless GPU endpoint:
// submit, poll to a terminal state, decode the returned artifacts.
type Backend struct {
	client    *Client
	artifacts *artifacts.Store
	cfg       config.RunPodConfig
	engineCfg config.EngineConfig
	recorder  Recorder
	logger    *slog.Logger
}

func NewBackend(cfg config.RunPodConfig, engineCfg config.EngineConfig, art *artifacts.Store, recorder Recorder, logger *slog.Logger) *Backend {
	return &Backend{
		client:    NewClient(cfg.BaseURL, cfg.APIKey, cfg.EndpointID, cfg.RequestTimeout),
		artifacts: art,
		cfg:       cfg,
		engineCfg: engineCfg,
		recorder:  recorder,
		logger:    logger,
	}
}

func (b *Backend) Name() string { return BackendName }

// submission is the payload the endpoint's handler expects: the input spec
// base64-encoded, the original request, and the run configuration.
type submission struct {
	JobID     string                   `json:"job_id"`
	InputYAML string                   `json:"input_yaml"`
	Request   models.PredictionRequest `json:"request_data"`
	Config    runConfig                `json:"config"`
}

type runConfig struct {
	Devices          int    `json:"devices"`
	Accelerator      string `json:"accelerator"`
	DiffusionSamples int    `json:"diffusion_samples"`
	UseMSAServer     bool   `json:"use_msa_server"`
}

// remoteOutput is the handler's result document. Artifacts map file names
// to base64 content.
type remoteOutput struct {
	AffinityPredValue         *float64          `json:"affinity_pred_value"`
	AffinityProbabilityBinary *float64          `json:"affinity_probability_binary"`
	ConfidenceScore           *float64          `json:"confidence_score"`
	PTM                       *float64          `json:"ptm"`
	IPTM                      *float64          `json:"iptm"`
	Artifacts                 map[string]string `json:"artifacts"`
}

func (b *Backend) Execute(ctx context.Context, in models.ExecutionInput, report models.ProgressFunc) (*models.RawResult, error) {
	log := b.logger.With("job_id", in.JobID)

	remoteID, err := b.client.Submit(ctx, submission{
		JobID:     in.JobID,
		InputYAML: base64.StdEncoding.EncodeToString(in.Spec),
		Request:   in.Request,
		Config:    b.runConfig(in.Request),
	})
	if err != nil {
		return nil, engine.NewFailure(engine.FailureCommunication, "submitting remote job", err)
	}
	log.Info("remote job submitted", "remote_id", remoteID)
	if b.recorder != nil {
		b.recorder(ctx, in.JobID, remoteID)
	}
	report(5)

	state, err := b.wait(ctx, remoteID, report, log)
	if err != nil {
		return nil, err
	}
	return b.decode(in.JobID, state)
}

// runConfig builds the execution settings for the remote worker; the
// request's diffusion-samples override wins over the configured default.
func (b *Backend) runConfig(req models.PredictionRequest) runConfig {
	samples := b.engineCfg.DiffusionSamples
	if req.DiffusionSamples > 0 {
		samples = req.DiffusionSamples
	}
	return runConfig{
		Devices:          b.engineCfg.Devices,
		Accelerator:      b.engineCfg.Accelerator,
		DiffusionSamples: samples,
		UseMSAServer:     b.engineCfg.UseMSAServer,
	}
}

// wait polls until the remote job reaches a terminal state or the overall
// wait deadline passes. Cancellation is forwarded best effort.
func (b *Backend) wait(ctx context.Context, remoteID string, report models.ProgressFunc, log *slog.Logger) (*JobState, error) {
	deadline := time.NewTimer(b.cfg.WaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	pollErrors := 0
	for {
		select {
		case <-ctx.Done():
			b.cancelRemote(remoteID, log)
			return nil, engine.NewFailure(engine.FailureTimeout, "wait cancelled", ctx.Err())
		case <-deadline.C:
			b.cancelRemote(remoteID, log)
			return nil, engine.NewFailure(engine.FailureTimeout,
				fmt.Sprintf("remote job did not finish within %s", b.cfg.WaitTimeout), nil)
		case <-ticker.C:
			state, err := b.client.Status(ctx, remoteID)
			if err != nil {
				pollErrors++
				log.Warn("status poll failed", "remote_id", remoteID, "attempt", pollErrors, "error", err)
				if pollErrors >= maxPollErrors {
					return nil, engine.NewFailure(engine.FailureCommunication, "polling remote job", err)
				}
				continue
			}
			pollErrors = 0
			report(progressFor(state.Status))

			if !TerminalStatus(state.Status) {
				continue
			}
			if state.Status != StatusCompleted {
				msg := fmt.Sprintf("remote job ended %s", state.Status)
				if state.Error != "" {
					msg += ": " + state.Error
				}
				return nil, engine.NewFailure(engine.FailureRemoteJob, msg, nil)
			}
			return state, nil
		}
	}
}

// cancelRemote uses a fresh short-lived context: the caller's context is
// already done when cancellation is needed most.
func (b *Backend) cancelRemote(remoteID string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.RequestTimeout)
	defer cancel()
	if err := b.client.Cancel(ctx, remoteID); err != nil {
		log.Warn("remote cancel failed", "remote_id", remoteID, "error", err)
	}
}

// decode unwraps the handler output and stores returned pose artifacts.
// The serverless wrapper sometimes double-encodes output as a JSON string.
func (b *Backend) decode(jobID string, state *JobState) (*models.RawResult, error) {
	payload := state.Output
	if len(payload) > 0 && payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return nil, engine.NewFailure(engine.FailureRemoteJob, "unwrapping remote output", err)
		}
		payload = []byte(inner)
	}
	if len(payload) == 0 {
		return nil, engine.NewFailure(engine.FailureRemoteJob, "remote job completed without output", nil)
	}

	var out remoteOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, engine.NewFailure(engine.FailureRemoteJob, "decoding remote output", err)
	}

	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, engine.NewFailure(engine.FailureValidation, "invalid job id", err)
	}

	raw := &models.RawResult{
		AffinityPredValue:         out.AffinityPredValue,
		AffinityProbabilityBinary: out.AffinityProbabilityBinary,
		ConfidenceScore:           out.ConfidenceScore,
		PTM:                       out.PTM,
		IPTM:                      out.IPTM,
	}
	// Every returned artifact is stored; only .cif structures count as poses.
	names := make([]string, 0, len(out.Artifacts))
	for name := range out.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := base64.StdEncoding.DecodeString(out.Artifacts[name])
		if err != nil {
			return nil, engine.NewFailure(engine.FailureRemoteJob,
				fmt.Sprintf("decoding artifact %s", name), err)
		}
		if err := b.artifacts.WriteFile(id, name, data); err != nil {
			return nil, engine.NewFailure(engine.FailureStorage,
				fmt.Sprintf("storing artifact %s", name), err)
		}
		if strings.HasSuffix(name, ".cif") {
			raw.PoseFiles = append(raw.PoseFiles, name)
		}
	}
	return raw, nil
}

// progressFor maps remote queue states to coarse completion estimates.
func progressFor(status string) float64 {
	switch status {
	case StatusQueued, StatusInQueue:
		return 10
	case StatusInProgress:
		return 50
	case StatusCompleted:
		return 100
	}
	return 0
}
