package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/tris077/Atomera/internal/artifacts"
	"github.com/tris077/Atomera/internal/store"
	"github.com/tris077/Atomera/pkg/models"
)

// Reaper removes terminal jobs whose last update is older than the
// retention age, together with their artifacts. Live jobs are never touched.
type Reaper struct {
	store     store.Store
	artifacts *artifacts.Store
	age       time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

func NewReaper(st store.Store, art *artifacts.Store, age, interval time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		store:     st,
		artifacts: art,
		age:       age,
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				r.logger.Error("retention sweep failed", "error", err)
			} else if n > 0 {
				r.logger.Info("retention sweep", "reaped", n)
			}
		}
	}
}

// Sweep deletes expired terminal jobs and returns how many were removed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.age)
	reaped := 0
	for _, status := range []string{models.JobStatusCompleted, models.JobStatusFailed} {
		jobs, err := r.store.ListJobs(ctx, store.JobFilter{Status: status, Limit: 500})
		if err != nil {
			return reaped, err
		}
		for _, job := range jobs {
			if job.UpdatedAt.After(cutoff) {
				continue
			}
			if err := r.artifacts.Remove(job.ID); err != nil {
				r.logger.Warn("removing artifacts", "job_id", job.ID, "error", err)
				continue
			}
			if err := r.store.DeleteJob(ctx, job.ID); err != nil {
				r.logger.Warn("deleting job record", "job_id", job.ID, "error", err)
				continue
			}
			reaped++
		}
	}
	return reaped, nil
}
