package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tris077/Atomera/internal/store"
	"github.com/tris077/Atomera/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("atomera_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func TestPostgresStore_JobLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob(t)
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Zero(t, got.Progress)
	assert.Equal(t, job.Request.Protein.Sequence, got.Request.Protein.Sequence)

	require.NoError(t, s.UpdateJob(ctx, job.ID, models.JobStatusRunning, 30,
		store.WithRemoteJobID("rp-1")))
	require.NoError(t, s.UpdateJob(ctx, job.ID, models.JobStatusRunning, 15)) // ignored, lower
	require.NoError(t, s.UpdateJob(ctx, job.ID, models.JobStatusCompleted, 100))

	got, err = s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.InDelta(t, 100, got.Progress, 1e-9)
	require.NotNil(t, got.RemoteJobID)
	assert.Equal(t, "rp-1", *got.RemoteJobID)

	// Terminal state rejects further transitions.
	err = s.UpdateJob(ctx, job.ID, models.JobStatusFailed, 0)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	require.NoError(t, s.DeleteJob(ctx, job.ID))
	_, err = s.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteJob(ctx, job.ID), store.ErrNotFound)
}

func TestPostgresStore_ListJobs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		j := newJob(t)
		require.NoError(t, s.CreateJob(ctx, j))
		require.NoError(t, s.UpdateJob(ctx, j.ID, models.JobStatusRunning, 50))
		require.NoError(t, s.UpdateJob(ctx, j.ID, models.JobStatusFailed, 0,
			store.WithErrorMessage("boom")))
	}
	pendingJob := newJob(t)
	require.NoError(t, s.CreateJob(ctx, pendingJob))

	failed, err := s.ListJobs(ctx, store.JobFilter{Status: models.JobStatusFailed, Limit: 10})
	require.NoError(t, err)
	require.Len(t, failed, 2)
	for _, j := range failed {
		assert.Equal(t, models.JobStatusFailed, j.Status)
	}

	all, err := s.ListJobs(ctx, store.JobFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPostgresStore_UpdateMissing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.UpdateJob(context.Background(), newJob(t).ID, models.JobStatusRunning, 10)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
