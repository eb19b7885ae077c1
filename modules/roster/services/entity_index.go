package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

// EntityIndex is the in-memory lookup built from a store snapshot. It belongs to a
// single job and is safe for concurrent use by that job's workers.
type EntityIndex struct {
	mu                sync.RWMutex
	byID              map[string]roster.OrgRecord
	byCode            map[int]roster.OrgRecord
	byName            map[string]roster.OrgRecord
	byCourseKey       map[roster.CourseKey]roster.CourseRecord
	byCourseKeyNoYear map[roster.CourseKey][]roster.CourseRecord
	courseKeys        map[string]roster.CourseKey
	warnings          []string

	locksMu   sync.Mutex
	codeLocks map[int]*sync.Mutex
}

func newEntityIndex() *EntityIndex {
	return &EntityIndex{
		byID:              make(map[string]roster.OrgRecord),
		byCode:            make(map[int]roster.OrgRecord),
		byName:            make(map[string]roster.OrgRecord),
		byCourseKey:       make(map[roster.CourseKey]roster.CourseRecord),
		byCourseKeyNoYear: make(map[roster.CourseKey][]roster.CourseRecord),
		courseKeys:        make(map[string]roster.CourseKey),
		codeLocks:         make(map[int]*sync.Mutex),
	}
}

// BuildEntityIndex indexes a snapshot in one pass. When the snapshot repeats a code,
// a name or a course key, the last record seen wins and a warning is kept.
func BuildEntityIndex(orgs []roster.OrgRecord, courses []roster.CourseRecord) *EntityIndex {
	ix := newEntityIndex()
	for _, org := range orgs {
		if org.HasCode() {
			if prev, dup := ix.byCode[org.Code]; dup && prev.ID != org.ID {
				ix.warnings = append(ix.warnings, fmt.Sprintf(
					"organization code %d is shared by %s and %s; using %s", org.Code, prev.ID, org.ID, org.ID))
			}
		}
		if key := NormalizeName(org.Name); key != "" {
			if prev, dup := ix.byName[key]; dup && prev.ID != org.ID {
				ix.warnings = append(ix.warnings, fmt.Sprintf(
					"organization name %q is shared by %s and %s; using %s", org.Name, prev.ID, org.ID, org.ID))
			}
		}
		ix.insertOrgLocked(org)
	}
	for _, c := range courses {
		if prev, dup := ix.byCourseKey[c.Key()]; dup && prev.ID != c.ID {
			ix.warnings = append(ix.warnings, fmt.Sprintf(
				"course key %s of organization %s is shared by %s and %s; using %s",
				c.Key().Tuple(), c.OrgID, prev.ID, c.ID, c.ID))
		}
		ix.insertCourseLocked(c)
	}
	return ix
}

func (ix *EntityIndex) OrgByID(id string) (roster.OrgRecord, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	org, ok := ix.byID[id]
	return org, ok
}

func (ix *EntityIndex) OrgByCode(code int) (roster.OrgRecord, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	org, ok := ix.byCode[code]
	return org, ok
}

// OrgByName looks a name up by its normalized form.
func (ix *EntityIndex) OrgByName(name string) (roster.OrgRecord, bool) {
	key := NormalizeName(name)
	if key == "" {
		return roster.OrgRecord{}, false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	org, ok := ix.byName[key]
	return org, ok
}

// OrgNames returns the normalized names known to the index, sorted.
func (ix *EntityIndex) OrgNames() []string {
	ix.mu.RLock()
	names := make([]string, 0, len(ix.byName))
	for name := range ix.byName {
		names = append(names, name)
	}
	ix.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Course looks a course up by its exact key.
func (ix *EntityIndex) Course(key roster.CourseKey) (roster.CourseRecord, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	c, ok := ix.byCourseKey[key]
	return c, ok
}

// CourseIgnoringYear returns the first indexed course with the same org, stage and grade.
func (ix *EntityIndex) CourseIgnoringYear(key roster.CourseKey) (roster.CourseRecord, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	list := ix.byCourseKeyNoYear[key.WithoutYear()]
	if len(list) == 0 {
		return roster.CourseRecord{}, false
	}
	return list[0], true
}

func (ix *EntityIndex) InsertOrg(org roster.OrgRecord) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.insertOrgLocked(org)
}

func (ix *EntityIndex) InsertCourse(c roster.CourseRecord) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.insertCourseLocked(c)
}

// SetCourseHeadcount mirrors a successful remote update into the index.
func (ix *EntityIndex) SetCourseHeadcount(courseID string, headcount int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	key, ok := ix.courseKeys[courseID]
	if !ok {
		return
	}
	if c, ok := ix.byCourseKey[key]; ok && c.ID == courseID {
		c.Headcount = headcount
		ix.byCourseKey[key] = c
	}
	list := ix.byCourseKeyNoYear[key.WithoutYear()]
	for i := range list {
		if list[i].ID == courseID {
			list[i].Headcount = headcount
		}
	}
}

func (ix *EntityIndex) Warnings() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.warnings...)
}

// Len returns the number of indexed orgs and courses.
func (ix *EntityIndex) Len() (orgs, courses int) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byID), len(ix.byCourseKey)
}

// lockCode serializes work on one org code and returns the unlock func.
func (ix *EntityIndex) lockCode(code int) func() {
	ix.locksMu.Lock()
	m, ok := ix.codeLocks[code]
	if !ok {
		m = &sync.Mutex{}
		ix.codeLocks[code] = m
	}
	ix.locksMu.Unlock()
	m.Lock()
	return m.Unlock
}

func (ix *EntityIndex) insertOrgLocked(org roster.OrgRecord) {
	if org.ID == "" {
		return
	}
	ix.byID[org.ID] = org
	if org.HasCode() {
		ix.byCode[org.Code] = org
	}
	if key := NormalizeName(org.Name); key != "" {
		ix.byName[key] = org
	}
}

func (ix *EntityIndex) insertCourseLocked(c roster.CourseRecord) {
	if c.ID == "" {
		return
	}
	key := c.Key()
	ix.byCourseKey[key] = c
	ix.courseKeys[c.ID] = key

	noYear := key.WithoutYear()
	list := ix.byCourseKeyNoYear[noYear]
	for i := range list {
		if list[i].ID == c.ID {
			list[i] = c
			return
		}
	}
	ix.byCourseKeyNoYear[noYear] = append(list, c)
}
