package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/tris077/Atomera/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrInvalidTransition is returned when a status update would move a job
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All persistence goes through here.
// The persisted job record is the sole source of truth for job state;
// implementations must enforce forward-only status transitions and
// non-decreasing progress (progress resets to 0 on failure).
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	// GetJob returns ErrNotFound for an unknown id; absence is a normal,
	// non-error outcome for callers that check with errors.Is.
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// UpdateJob merges status/progress plus options and refreshes
	// updated_at. A missing record returns ErrNotFound.
	UpdateJob(ctx context.Context, id uuid.UUID, status string, progress float64, opts ...JobUpdateOption) error
	// ListJobs filters by status (empty = all), orders by updated_at
	// descending, and truncates to the filter limit.
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error)
	// DeleteJob removes the record; a missing id returns ErrNotFound.
	DeleteJob(ctx context.Context, id uuid.UUID) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

// JobFilter narrows and bounds a ListJobs call.
type JobFilter struct {
	Status string
	Limit  int
}

type jobUpdateParams struct {
	ErrorMessage *string
	RemoteJobID  *string
}

type JobUpdateOption func(*jobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithRemoteJobID(id string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.RemoteJobID = &id
	}
}

var validTransitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusPending, models.JobStatusRunning, models.JobStatusFailed},
	models.JobStatusRunning: {models.JobStatusRunning, models.JobStatusCompleted, models.JobStatusFailed},
}

// transitionAllowed reports whether a job may move from one status to
// another. Same-status updates are allowed for live jobs so progress can
// advance; terminal states accept nothing.
func transitionAllowed(from, to string) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// mergeProgress applies the progress rules: non-decreasing within a live
// job, forced to 0 on failure, forced to 100 on completion.
func mergeProgress(current, requested float64, status string) float64 {
	switch status {
	case models.JobStatusFailed:
		return 0
	case models.JobStatusCompleted:
		return 100
	}
	if requested < current {
		return current
	}
	if requested > 100 {
		return 100
	}
	return requested
}
