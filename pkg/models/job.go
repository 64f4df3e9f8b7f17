// Package models contains shared data models used across the Atomera codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// IsTerminalStatus reports whether a job in this status can never transition again.
func IsTerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// Job tracks one binding-affinity prediction through its lifecycle. The API
// returns a job id on POST /api/v1/predict; the client polls
// GET /api/v1/jobs/{job_id} until status is completed or failed.
//
// Status moves forward only (pending → running → completed|failed). Progress
// is non-decreasing while the job is live and resets to 0 on failure. The
// persisted record is the sole source of truth; the Redis entry is a cache.
type Job struct {
	ID           uuid.UUID         `db:"id"            json:"job_id"`
	Status       string            `db:"status"        json:"status"`
	Progress     float64           `db:"progress"      json:"progress"`
	Request      PredictionRequest `db:"request"       json:"request"`
	RemoteJobID  *string           `db:"remote_job_id" json:"remote_job_id,omitempty"`
	ErrorMessage *string           `db:"error_message" json:"error,omitempty"`
	CreatedAt    time.Time         `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at"    json:"updated_at"`
}
