package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

// DryRun reads through to base and simulates writes locally. Created orgs get ids
// prefixed with "dry-run-" and never reach base.
type DryRun struct {
	base roster.Store

	mu         sync.Mutex
	created    map[int]roster.OrgRecord
	headcounts map[string]int
	seq        int
}

func NewDryRun(base roster.Store) *DryRun {
	return &DryRun{
		base:       base,
		created:    make(map[int]roster.OrgRecord),
		headcounts: make(map[string]int),
	}
}

func (d *DryRun) FetchAllOrgs(ctx context.Context) ([]roster.OrgRecord, error) {
	return d.base.FetchAllOrgs(ctx)
}

func (d *DryRun) FetchAllCourses(ctx context.Context) ([]roster.CourseRecord, error) {
	return d.base.FetchAllCourses(ctx)
}

func (d *DryRun) FindOrgByCode(ctx context.Context, code int) (roster.OrgRecord, error) {
	d.mu.Lock()
	org, ok := d.created[code]
	d.mu.Unlock()
	if ok {
		return org, nil
	}
	return d.base.FindOrgByCode(ctx, code)
}

func (d *DryRun) CreateOrg(ctx context.Context, name string, code int) (roster.OrgRecord, error) {
	if _, err := d.base.FindOrgByCode(ctx, code); err == nil {
		return roster.OrgRecord{}, &roster.ConflictError{Code: code}
	} else if !errors.Is(err, roster.ErrNotFound) {
		return roster.OrgRecord{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.created[code]; ok {
		return roster.OrgRecord{}, &roster.ConflictError{Code: code}
	}
	d.seq++
	org := roster.OrgRecord{ID: fmt.Sprintf("dry-run-%d", d.seq), Code: code, Name: name}
	d.created[code] = org
	return org, nil
}

func (d *DryRun) UpdateCourseHeadcount(ctx context.Context, courseID string, headcount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.headcounts[courseID] = headcount
	return nil
}

// PlannedOrgs returns the orgs a real run would create.
func (d *DryRun) PlannedOrgs() []roster.OrgRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]roster.OrgRecord, 0, len(d.created))
	for _, org := range d.created {
		out = append(out, org)
	}
	return out
}

// PlannedHeadcounts returns the headcount writes a real run would issue.
func (d *DryRun) PlannedHeadcounts() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int, len(d.headcounts))
	for k, v := range d.headcounts {
		out[k] = v
	}
	return out
}
