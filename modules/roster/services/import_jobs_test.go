package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
	"github.com/iota-uz/roster-sync/modules/roster/infrastructure/memstore"
)

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]roster.ImportJob
	seen []int
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[string]roster.ImportJob)}
}

func (m *memJobs) Create(_ context.Context, job roster.ImportJob) (roster.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Status = roster.JobQueued
	m.jobs[job.ID] = job
	return job, nil
}

func (m *memJobs) mutate(id string, fn func(*roster.ImportJob)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: import job %s", roster.ErrNotFound, id)
	}
	fn(&job)
	m.jobs[id] = job
	return nil
}

func (m *memJobs) Start(_ context.Context, id string, total int) error {
	return m.mutate(id, func(j *roster.ImportJob) { j.Status, j.Total = roster.JobRunning, total })
}

func (m *memJobs) UpdateProgress(_ context.Context, id string, done int) error {
	return m.mutate(id, func(j *roster.ImportJob) {
		m.seen = append(m.seen, done)
		j.Done = max(j.Done, done)
	})
}

func (m *memJobs) Finish(_ context.Context, id string, summary roster.JobSummary) error {
	return m.mutate(id, func(j *roster.ImportJob) {
		j.Status, j.Done, j.Summary = roster.JobFinished, summary.RowsTotal, &summary
	})
}

func (m *memJobs) Fail(_ context.Context, id string, cause error) error {
	return m.mutate(id, func(j *roster.ImportJob) { j.Status, j.Error = roster.JobFailed, cause.Error() })
}

func (m *memJobs) GetByID(_ context.Context, id string) (roster.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return roster.ImportJob{}, fmt.Errorf("%w: import job %s", roster.ErrNotFound, id)
	}
	return job, nil
}

func dryRun(s roster.Store) roster.Store { return memstore.NewDryRun(s) }

func TestImportJobService_DryRunLeavesStoreUntouched(t *testing.T) {
	store := seededStore()
	jobs := newMemJobs()
	svc := NewImportJobService(store, jobs, ImportJobOptions{DryRun: dryRun})

	job, err := svc.Submit(context.Background(), "upload.csv", false, []roster.Record{
		rec("rbd", 100, "cod_grado", 12, "agno", 2025, "mat_total", 77),
		rec("rbd", 555, "nom_rbd", "Nuevo", "cod_grado", 12, "mat_total", 3),
	})
	require.NoError(t, err)
	require.Equal(t, roster.JobQueued, job.Status)
	require.Equal(t, 2, job.Total)
	svc.Wait()

	got, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, roster.JobFinished, got.Status)
	require.Equal(t, 2, got.Done)
	require.Equal(t, 1, got.Summary.Updated)
	require.Equal(t, 1, got.Summary.OrgsCreated)
	require.Equal(t, job.ID, got.Summary.JobID)

	c1, _ := store.Course("c1")
	require.NotEqual(t, 77, c1.Headcount)
	_, created := store.Org(555)
	require.False(t, created)
	require.EqualValues(t, 0, store.CreateCalls())
}

func TestImportJobService_ApplyWritesThrough(t *testing.T) {
	store := seededStore()
	svc := NewImportJobService(store, newMemJobs(), ImportJobOptions{DryRun: dryRun})

	job, err := svc.Submit(context.Background(), "api", true, []roster.Record{
		rec("rbd", 100, "cod_grado", 12, "agno", 2025, "mat_total", 77),
	})
	require.NoError(t, err)
	svc.Wait()

	got, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, roster.JobFinished, got.Status)
	c1, _ := store.Course("c1")
	require.Equal(t, 77, c1.Headcount)
}

func TestImportJobService_SnapshotFailureMarksJobFailed(t *testing.T) {
	svc := NewImportJobService(&failingFetchStore{Store: memstore.New()}, newMemJobs(), ImportJobOptions{DryRun: dryRun})

	job, err := svc.Submit(context.Background(), "api", true, []roster.Record{rec("rbd", 1, "mat_total", 1)})
	require.NoError(t, err)
	svc.Wait()

	got, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, roster.JobFailed, got.Status)
	require.Contains(t, got.Error, "fetch organizations")
	require.Nil(t, got.Summary)
}

func TestImportJobService_RejectsEmptyAndUnknown(t *testing.T) {
	svc := NewImportJobService(memstore.New(), newMemJobs(), ImportJobOptions{DryRun: dryRun})

	_, err := svc.Submit(context.Background(), "api", true, nil)
	require.ErrorIs(t, err, roster.ErrInput)

	_, err = svc.Get(context.Background(), "nope")
	require.ErrorIs(t, err, roster.ErrNotFound)

	require.NoError(t, svc.Shutdown(context.Background()))
	_, err = svc.Submit(context.Background(), "api", true, []roster.Record{rec("rbd", 1)})
	require.True(t, errors.Is(err, context.Canceled), err)
}
