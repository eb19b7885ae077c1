package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
	"github.com/iota-uz/roster-sync/pkg/eventbus"
	"github.com/iota-uz/roster-sync/pkg/logging"
)

// JobRepository persists asynchronous import jobs.
type JobRepository interface {
	Create(ctx context.Context, job roster.ImportJob) (roster.ImportJob, error)
	Start(ctx context.Context, id string, total int) error
	UpdateProgress(ctx context.Context, id string, done int) error
	Finish(ctx context.Context, id string, summary roster.JobSummary) error
	Fail(ctx context.Context, id string, cause error) error
	GetByID(ctx context.Context, id string) (roster.ImportJob, error)
}

type ImportJobOptions struct {
	Import ImportOptions
	// JobTimeout bounds a whole background job, snapshot included.
	JobTimeout time.Duration
	// DryRun wraps the store for jobs submitted without apply. Required.
	DryRun func(roster.Store) roster.Store
	Logger *logrus.Logger
}

// ImportJobService runs imports in the background and tracks them in a JobRepository.
type ImportJobService struct {
	store roster.Store
	jobs  JobRepository
	opts  ImportJobOptions
	log   *logrus.Entry

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewImportJobService(store roster.Store, jobs JobRepository, opts ImportJobOptions) *ImportJobService {
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Minute
	}
	log := logging.Nop()
	if opts.Logger != nil {
		log = logrus.NewEntry(opts.Logger)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ImportJobService{
		store:   store,
		jobs:    jobs,
		opts:    opts,
		log:     log,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Submit records a queued job and starts it. The returned job is the queued state.
func (s *ImportJobService) Submit(ctx context.Context, source string, apply bool, records []roster.Record) (roster.ImportJob, error) {
	if len(records) == 0 {
		return roster.ImportJob{}, fmt.Errorf("%w: no rows to import", roster.ErrInput)
	}
	if !apply && s.opts.DryRun == nil {
		return roster.ImportJob{}, fmt.Errorf("dry-run imports are not configured")
	}
	if err := s.baseCtx.Err(); err != nil {
		return roster.ImportJob{}, fmt.Errorf("import jobs are shutting down: %w", err)
	}

	job, err := s.jobs.Create(ctx, roster.ImportJob{
		ID:     uuid.NewString(),
		Source: source,
		Apply:  apply,
		Total:  len(records),
	})
	if err != nil {
		return roster.ImportJob{}, err
	}

	log := s.log
	if l := loggerFromContext(ctx); l != nil {
		log = l
	}
	log = log.WithFields(logrus.Fields{"job-id": job.ID, "apply": apply, "source": source})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(job, records, log)
	}()
	return job, nil
}

func (s *ImportJobService) run(job roster.ImportJob, records []roster.Record, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.opts.JobTimeout)
	defer cancel()
	// Status writes must land even when the job itself was cancelled.
	bookkeeping := context.WithoutCancel(ctx)

	store := s.store
	if !job.Apply {
		store = s.opts.DryRun(store)
	}

	every := max(1, len(records)/100)
	bus := eventbus.NewEventPublisher(log.Logger)
	bus.Subscribe(func(e *JobStartedEvent) {
		if err := s.jobs.Start(bookkeeping, e.JobID, e.Rows); err != nil {
			log.WithError(err).Warn("failed to mark import job running")
		}
	})
	bus.Subscribe(func(e *RowProcessedEvent) {
		if e.Done%every != 0 && e.Done != e.Total {
			return
		}
		if err := s.jobs.UpdateProgress(bookkeeping, e.JobID, e.Done); err != nil {
			log.WithError(err).Debug("failed to record import progress")
		}
	})

	bus.Subscribe(func(e *JobFinishedEvent) {
		log.WithField("rows", e.Summary.RowsTotal).Debug("import job summary ready")
	})

	opts := s.opts.Import
	opts.JobID = job.ID
	opts.Logger = log
	opts.EventBus = bus

	summary, err := NewImportService(store, opts).Run(ctx, records)
	if err != nil {
		log.WithError(err).Error("roster import job failed")
		if ferr := s.jobs.Fail(bookkeeping, job.ID, err); ferr != nil {
			log.WithError(ferr).Error("failed to record import job failure")
		}
		return
	}
	if err := s.jobs.Finish(bookkeeping, job.ID, summary); err != nil {
		log.WithError(err).Error("failed to record import job summary")
	}
}

func (s *ImportJobService) Get(ctx context.Context, id string) (roster.ImportJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// Wait blocks until every submitted job has finished.
func (s *ImportJobService) Wait() {
	s.wg.Wait()
}

// Shutdown cancels running jobs and waits for them to record their outcome.
func (s *ImportJobService) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
