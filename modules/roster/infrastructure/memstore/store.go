// Package memstore holds in-memory roster stores: a standalone Store for local runs
// and tests, and a DryRun wrapper that reads from a real store and keeps writes local.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

type Store struct {
	mu      sync.RWMutex
	orgs    map[string]roster.OrgRecord
	codes   map[int]string
	courses map[string]roster.CourseRecord
	order   []string

	// CreateDelay widens the window between the uniqueness check and the insert.
	CreateDelay time.Duration
	// FailUpdates makes UpdateCourseHeadcount fail for the listed course ids.
	FailUpdates map[string]error

	createCalls atomic.Int64
	updateCalls atomic.Int64
}

func New() *Store {
	return &Store{
		orgs:    make(map[string]roster.OrgRecord),
		codes:   make(map[int]string),
		courses: make(map[string]roster.CourseRecord),
	}
}

// Seed inserts records as-is, bypassing uniqueness checks.
func (s *Store) Seed(orgs []roster.OrgRecord, courses []roster.CourseRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range orgs {
		if _, ok := s.orgs[o.ID]; !ok {
			s.order = append(s.order, o.ID)
		}
		s.orgs[o.ID] = o
		if o.HasCode() {
			s.codes[o.Code] = o.ID
		}
	}
	for _, c := range courses {
		s.courses[c.ID] = c
	}
}

func (s *Store) FetchAllOrgs(ctx context.Context) ([]roster.OrgRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]roster.OrgRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.orgs[id])
	}
	return out, nil
}

func (s *Store) FetchAllCourses(ctx context.Context) ([]roster.CourseRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]roster.CourseRecord, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindOrgByCode(ctx context.Context, code int) (roster.OrgRecord, error) {
	if err := ctx.Err(); err != nil {
		return roster.OrgRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return roster.OrgRecord{}, fmt.Errorf("%w: organization code %d", roster.ErrNotFound, code)
	}
	return s.orgs[id], nil
}

func (s *Store) CreateOrg(ctx context.Context, name string, code int) (roster.OrgRecord, error) {
	s.createCalls.Add(1)
	if s.CreateDelay > 0 {
		select {
		case <-time.After(s.CreateDelay):
		case <-ctx.Done():
			return roster.OrgRecord{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[code]; taken {
		return roster.OrgRecord{}, &roster.ConflictError{Code: code}
	}
	org := roster.OrgRecord{ID: uuid.NewString(), Code: code, Name: name}
	s.orgs[org.ID] = org
	s.codes[code] = org.ID
	s.order = append(s.order, org.ID)
	return org, nil
}

func (s *Store) UpdateCourseHeadcount(ctx context.Context, courseID string, headcount int) error {
	s.updateCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := s.FailUpdates[courseID]; ok {
		return fmt.Errorf("%w: %v", roster.ErrRemote, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[courseID]
	if !ok {
		return fmt.Errorf("%w: course %s", roster.ErrNotFound, courseID)
	}
	c.Headcount = headcount
	s.courses[courseID] = c
	return nil
}

// Org returns the stored org with the given code.
func (s *Store) Org(code int) (roster.OrgRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return roster.OrgRecord{}, false
	}
	return s.orgs[id], true
}

func (s *Store) Course(id string) (roster.CourseRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[id]
	return c, ok
}

func (s *Store) OrgCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orgs)
}

func (s *Store) CreateCalls() int64 {
	return s.createCalls.Load()
}

func (s *Store) UpdateCalls() int64 {
	return s.updateCalls.Load()
}
