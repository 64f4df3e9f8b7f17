package main

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tris077/Atomera/internal/artifacts"
	"github.com/tris077/Atomera/internal/config"
	"github.com/tris077/Atomera/internal/engine/local"
	"github.com/tris077/Atomera/internal/engine/runpod"
	"github.com/tris077/Atomera/internal/store"
	"github.com/tris077/Atomera/pkg/models"
)

// newBackend constructs the execution backend for this deployment. The
// remote backend is selected when RunPod credentials are configured,
// otherwise predictions run as local subprocesses. Called once at startup.
func newBackend(cfg *config.Config, st store.Store, art *artifacts.Store, logger *slog.Logger) models.ExecutionBackend {
	if cfg.RemoteEnabled() {
		recorder := func(ctx context.Context, jobID string, remoteID string) {
			id, err := uuid.Parse(jobID)
			if err != nil {
				return
			}
			err = st.UpdateJob(ctx, id, models.JobStatusRunning, 0, store.WithRemoteJobID(remoteID))
			if err != nil {
				logger.Warn("recording remote job id", "job_id", jobID, "error", err)
			}
		}
		return runpod.NewBackend(cfg.RunPod, cfg.Engine, art, recorder, logger)
	}
	return local.NewBackend(cfg.Engine, art, logger)
}
