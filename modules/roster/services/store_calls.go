package services

import (
	"context"
	"time"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

// instrumentedStore bounds every point call with its own timeout and records metrics.
// Snapshot fetches are paginated and only bounded by the caller's context.
type instrumentedStore struct {
	next    roster.Store
	timeout time.Duration
}

func instrumentStore(next roster.Store, timeout time.Duration) roster.Store {
	return &instrumentedStore{next: next, timeout: timeout}
}

func (s *instrumentedStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *instrumentedStore) FetchAllOrgs(ctx context.Context) (orgs []roster.OrgRecord, err error) {
	defer func(start time.Time) { recordStoreCall("fetch_orgs", start, err) }(time.Now())
	return s.next.FetchAllOrgs(ctx)
}

func (s *instrumentedStore) FetchAllCourses(ctx context.Context) (courses []roster.CourseRecord, err error) {
	defer func(start time.Time) { recordStoreCall("fetch_courses", start, err) }(time.Now())
	return s.next.FetchAllCourses(ctx)
}

func (s *instrumentedStore) FindOrgByCode(ctx context.Context, code int) (org roster.OrgRecord, err error) {
	defer func(start time.Time) { recordStoreCall("find_org", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.next.FindOrgByCode(ctx, code)
}

func (s *instrumentedStore) CreateOrg(ctx context.Context, name string, code int) (org roster.OrgRecord, err error) {
	defer func(start time.Time) { recordStoreCall("create_org", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.next.CreateOrg(ctx, name, code)
}

func (s *instrumentedStore) UpdateCourseHeadcount(ctx context.Context, courseID string, headcount int) (err error) {
	defer func(start time.Time) { recordStoreCall("update_course", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.next.UpdateCourseHeadcount(ctx, courseID, headcount)
}
