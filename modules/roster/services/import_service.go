package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
	"github.com/iota-uz/roster-sync/pkg/eventbus"
	"github.com/iota-uz/roster-sync/pkg/serrors"
)

const (
	DefaultConcurrency = 8
	DefaultCallTimeout = 20 * time.Second
)

var tracer = otel.Tracer("roster-sync/import")

type ImportOptions struct {
	JobID       string
	Concurrency int
	// CallTimeout bounds each remote create, find or update call.
	CallTimeout time.Duration
	// StrictLevels fails rows whose level falls back to the default instead of flagging them.
	StrictLevels bool
	// DefaultYear is used for rows without a year when positive.
	DefaultYear int
	Logger      *logrus.Entry
	EventBus    eventbus.EventBus
}

func (o *ImportOptions) setDefaults() {
	if o.JobID == "" {
		o.JobID = uuid.NewString()
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
}

// ImportService reconciles a batch of rows against the store.
type ImportService struct {
	store roster.Store
	opts  ImportOptions
}

func NewImportService(store roster.Store, opts ImportOptions) *ImportService {
	opts.setDefaults()
	return &ImportService{
		store: instrumentStore(store, opts.CallTimeout),
		opts:  opts,
	}
}

func (s *ImportService) JobID() string {
	return s.opts.JobID
}

// NormalizeRows normalizes records in order; row indexes are zero based.
func NormalizeRows(records []roster.Record) []roster.ImportRow {
	rows := make([]roster.ImportRow, len(records))
	for i, rec := range records {
		rows[i] = NormalizeRow(i, rec)
	}
	return rows
}

// Run normalizes records, builds the snapshot index and executes the job. It only
// fails when the snapshot cannot be read; row problems are reported in the summary.
func (s *ImportService) Run(ctx context.Context, records []roster.Record) (roster.JobSummary, error) {
	rows := NormalizeRows(records)
	index, err := s.BuildIndex(ctx)
	if err != nil {
		return roster.JobSummary{}, err
	}
	return s.Execute(ctx, rows, index), nil
}

// BuildIndex reads the full org and course snapshot. Nothing resolves before it returns.
func (s *ImportService) BuildIndex(ctx context.Context) (*EntityIndex, error) {
	ctx, span := tracer.Start(ctx, "roster.import.snapshot")
	defer span.End()

	var (
		orgs    []roster.OrgRecord
		courses []roster.CourseRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if orgs, err = s.store.FetchAllOrgs(gctx); err != nil {
			return fmt.Errorf("fetch organizations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if courses, err = s.store.FetchAllCourses(gctx); err != nil {
			return fmt.Errorf("fetch courses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("snapshot.orgs", len(orgs)), attribute.Int("snapshot.courses", len(courses)))
	return BuildEntityIndex(orgs, courses), nil
}

type resolvers struct {
	orgs    *OrgResolver
	courses *CourseResolver
}

// Execute processes rows on a bounded pool against index. Cancelling ctx stops scheduling;
// rows already running finish and are recorded, the rest are reported as skipped.
func (s *ImportService) Execute(ctx context.Context, rows []roster.ImportRow, index *EntityIndex) roster.JobSummary {
	startedAt := time.Now().UTC()
	jobID := s.opts.JobID
	log := jobLogger(ctx, s.opts.Logger).WithField("job-id", jobID)

	ctx, span := tracer.Start(ctx, "roster.import.job", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.Int("job.rows", len(rows)),
		attribute.Int("job.concurrency", s.opts.Concurrency),
	))
	defer span.End()

	importJobsInFlight.Inc()
	defer importJobsInFlight.Dec()

	warnings := index.Warnings()
	for _, w := range warnings {
		log.Warn(w)
	}
	orgCount, courseCount := index.Len()
	log.WithFields(logrus.Fields{
		"rows":    len(rows),
		"orgs":    orgCount,
		"courses": courseCount,
	}).Info("roster import started")
	s.publish(&JobStartedEvent{JobID: jobID, Rows: len(rows), Orgs: orgCount, Courses: courseCount})

	deps := &resolvers{
		orgs:    NewOrgResolver(s.store, index, collectNameHints(rows)),
		courses: NewCourseResolver(s.store, index),
	}

	results := make([]roster.RowResult, len(rows))
	// Units keep running with their own timeouts after the job is cancelled.
	work := context.WithoutCancel(ctx)
	sem := semaphore.NewWeighted(int64(s.opts.Concurrency))
	var (
		g         errgroup.Group
		done      atomic.Int64
		scheduled = len(rows)
	)
	for i := range rows {
		if err := sem.Acquire(ctx, 1); err != nil {
			scheduled = i
			break
		}
		if ctx.Err() != nil {
			sem.Release(1)
			scheduled = i
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			res := s.processRow(work, log, deps, rows[i])
			results[i] = res
			s.publish(&RowProcessedEvent{JobID: jobID, Result: res, Done: int(done.Add(1)), Total: len(rows)})
			return nil
		})
	}
	_ = g.Wait()

	cancelled := scheduled < len(rows)
	for i := scheduled; i < len(rows); i++ {
		results[i] = roster.RowResult{
			RowIndex: rows[i].Index,
			Outcome:  roster.OutcomeSkipped,
			Messages: []string{"not processed: import cancelled"},
		}
	}

	summary := Summarize(jobID, startedAt, time.Now().UTC(), results, cancelled)
	summary.Warnings = warnings
	recordJob(summary)

	span.SetAttributes(
		attribute.Int("job.updated", summary.Updated),
		attribute.Int("job.created", summary.Created),
		attribute.Int("job.skipped", summary.Skipped),
		attribute.Int("job.errors", summary.Errors),
		attribute.Bool("job.cancelled", cancelled),
	)
	entry := log.WithFields(logrus.Fields{
		"rows":            summary.RowsTotal,
		"updated":         summary.Updated,
		"created":         summary.Created,
		"skipped":         summary.Skipped,
		"errors":          summary.Errors,
		"orgs-created":    summary.OrgsCreated,
		"courses-updated": summary.CoursesUpdated,
		"elapsed":         summary.Elapsed,
	})
	if cancelled {
		entry.Warn("roster import cancelled")
	} else {
		entry.Info("roster import finished")
	}
	s.publish(&JobFinishedEvent{JobID: jobID, Summary: summary})
	return summary
}

func (s *ImportService) processRow(ctx context.Context, log *logrus.Entry, deps *resolvers, row roster.ImportRow) (res roster.RowResult) {
	start := time.Now()
	res = roster.RowResult{RowIndex: row.Index}
	ctx, span := tracer.Start(ctx, "roster.import.row", trace.WithAttributes(attribute.Int("row.index", row.Index)))
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{"row": row.Index, "panic": r, "stack": string(debug.Stack())}).
				Error("roster import row panicked")
			res = failRow(res, fmt.Errorf("internal error: %v", r))
		}
		span.SetAttributes(attribute.String("row.outcome", string(res.Outcome)))
		if res.Outcome == roster.OutcomeFailed {
			span.SetStatus(codes.Error, res.ErrorCode)
		}
		span.End()
		recordRow(res.Outcome, time.Since(start))
	}()

	res.Messages = append(res.Messages, row.Issues...)

	// Rows naming no org and carrying no usable headcount are noise, not errors.
	if !row.HasIdentity() && row.Headcount == nil {
		res.Outcome = roster.OutcomeSkipped
		if row.IsBlank() {
			res.Messages = append(res.Messages, "empty row")
		} else {
			res.Messages = append(res.Messages, "no organization and no headcount")
		}
		return res
	}
	if !row.HasIdentity() {
		return failRow(res, fmt.Errorf("%w: row has no org_id, org_code or org_name", roster.ErrInput))
	}
	if err := validateHeadcount(row); err != nil {
		return failRow(res, err)
	}

	year := 0
	switch {
	case row.Year != nil:
		year = *row.Year
	case s.opts.DefaultYear > 0:
		year = s.opts.DefaultYear
		res.Messages = append(res.Messages, fmt.Sprintf("year missing; using %d", year))
	}

	level := ClassifyLevel(row.LevelRaw, row.LevelCode)
	res.Messages = append(res.Messages, level.Notes...)
	if level.Fallback() && s.opts.StrictLevels {
		return failRow(res, fmt.Errorf("%w: %q", roster.ErrClassification, row.LevelRaw))
	}

	org, err := deps.orgs.Resolve(ctx, row)
	res.Messages = append(res.Messages, org.Notes...)
	if err != nil {
		return failRow(res, err)
	}
	res.OrgID = org.Org.ID
	res.OrgCreated = org.Created

	course, err := deps.courses.Resolve(ctx, res.OrgID, level.Level, year, row.Headcount)
	res.Messages = append(res.Messages, course.Notes...)
	res.CourseID = course.Course.ID
	if err != nil {
		return failRow(res, err)
	}
	if !course.Found {
		res.Outcome = roster.OutcomeSkipped
		return res
	}

	res.Messages = append(res.Messages, fmt.Sprintf("headcount set to %d", course.Course.Headcount))
	if org.Created {
		res.Outcome = roster.OutcomeCreated
	} else {
		res.Outcome = roster.OutcomeUpdated
	}
	return res
}

func validateHeadcount(row roster.ImportRow) error {
	switch {
	case row.Headcount != nil && *row.Headcount > 0:
		return nil
	case row.Headcount != nil:
		return fmt.Errorf("%w: headcount must be positive, got %d", roster.ErrInput, *row.Headcount)
	case row.HeadcountRaw != "":
		return fmt.Errorf("%w: headcount %q is not a whole number", roster.ErrInput, row.HeadcountRaw)
	default:
		return fmt.Errorf("%w: headcount is missing", roster.ErrInput)
	}
}

func failRow(res roster.RowResult, err error) roster.RowResult {
	res.Outcome = roster.OutcomeFailed
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		res.ErrorCode = roster.ErrRemote.Code
		msg = "remote call timed out: " + msg
	} else {
		res.ErrorCode = serrors.CodeOf(err, "ROSTER_INTERNAL")
	}
	res.Messages = append(res.Messages, msg)
	return res
}

func (s *ImportService) publish(event any) {
	if s.opts.EventBus != nil {
		s.opts.EventBus.Publish(event)
	}
}
