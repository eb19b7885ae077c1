package jobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *JobRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewJobRepository(client, time.Hour)
}

func TestJobRepository_Lifecycle(t *testing.T) {
	mr, repo := setupTestRedis(t)
	ctx := context.Background()

	job, err := repo.Create(ctx, roster.ImportJob{ID: "j1", Source: "matricula.xlsx", Apply: true, Total: 3})
	require.NoError(t, err)
	require.Equal(t, roster.JobQueued, job.Status)
	require.Equal(t, time.Hour, mr.TTL("roster:import:jobs:v1:{j1}"))

	require.NoError(t, repo.Start(ctx, "j1", 3))
	require.NoError(t, repo.UpdateProgress(ctx, "j1", 2))
	require.NoError(t, repo.UpdateProgress(ctx, "j1", 1))

	got, err := repo.GetByID(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, roster.JobRunning, got.Status)
	require.Equal(t, 2, got.Done)
	require.Equal(t, 3, got.Total)
	require.True(t, got.Apply)
	require.Equal(t, "matricula.xlsx", got.Source)
	require.False(t, got.Terminal())

	summary := roster.JobSummary{JobID: "j1", RowsTotal: 3, Updated: 3}
	require.NoError(t, repo.Finish(ctx, "j1", summary))

	got, err = repo.GetByID(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, roster.JobFinished, got.Status)
	require.Equal(t, 3, got.Done)
	require.NotNil(t, got.Summary)
	require.Equal(t, 3, got.Summary.Updated)
	require.True(t, got.Terminal())
	require.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestJobRepository_Fail(t *testing.T) {
	_, repo := setupTestRedis(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, roster.ImportJob{ID: "j2"})
	require.NoError(t, err)
	require.NoError(t, repo.Fail(ctx, "j2", errors.New("fetch organizations: connection refused")))

	got, err := repo.GetByID(ctx, "j2")
	require.NoError(t, err)
	require.Equal(t, roster.JobFailed, got.Status)
	require.Equal(t, "fetch organizations: connection refused", got.Error)
	require.Nil(t, got.Summary)
}

func TestJobRepository_NotFound(t *testing.T) {
	mr, repo := setupTestRedis(t)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, roster.ErrNotFound)
	require.ErrorIs(t, repo.UpdateProgress(ctx, "missing", 1), roster.ErrNotFound)
	require.ErrorIs(t, repo.Start(ctx, "missing", 1), roster.ErrNotFound)

	_, err = repo.Create(ctx, roster.ImportJob{ID: "j3"})
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)
	_, err = repo.GetByID(ctx, "j3")
	require.ErrorIs(t, err, roster.ErrNotFound)
}
