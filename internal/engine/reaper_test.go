package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tris077/Atomera/internal/artifacts"
	"github.com/tris077/Atomera/internal/store"
	"github.com/tris077/Atomera/pkg/models"
)

func TestSweep_RemovesExpiredTerminalJobs(t *testing.T) {
	st := store.NewMemoryStore()
	art, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	completed := createJob(t, st, testRequest())
	require.NoError(t, st.UpdateJob(ctx, completed.ID, models.JobStatusRunning, 10))
	require.NoError(t, st.UpdateJob(ctx, completed.ID, models.JobStatusCompleted, 100))
	require.NoError(t, art.WriteFile(completed.ID, "pose.cif", []byte("x")))

	failed := createJob(t, st, testRequest())
	require.NoError(t, st.UpdateJob(ctx, failed.ID, models.JobStatusFailed, 0))

	pending := createJob(t, st, testRequest())

	// Zero retention age: every terminal job is already expired.
	r := NewReaper(st, art, 0, time.Hour, testLogger())
	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = st.GetJob(ctx, completed.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetJob(ctx, failed.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	names, err := art.List(completed.ID)
	require.NoError(t, err)
	assert.Empty(t, names)

	// Live jobs are never reaped.
	_, err = st.GetJob(ctx, pending.ID)
	assert.NoError(t, err)
}

func TestSweep_KeepsRecentTerminalJobs(t *testing.T) {
	st := store.NewMemoryStore()
	art, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	job := createJob(t, st, testRequest())
	require.NoError(t, st.UpdateJob(ctx, job.ID, models.JobStatusRunning, 10))
	require.NoError(t, st.UpdateJob(ctx, job.ID, models.JobStatusCompleted, 100))

	r := NewReaper(st, art, time.Hour, time.Hour, testLogger())
	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
}

func TestSweep_PropagatesListErrors(t *testing.T) {
	art, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)

	r := NewReaper(&failingStore{}, art, 0, time.Hour, testLogger())
	_, err = r.Sweep(context.Background())
	assert.Error(t, err)
}

// failingStore errors on every list call.
type failingStore struct {
	store.Store
}

func (f *failingStore) ListJobs(context.Context, store.JobFilter) ([]*models.Job, error) {
	return nil, errors.New("db down")
}
