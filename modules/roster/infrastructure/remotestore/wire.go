package remotestore

import "github.com/iota-uz/roster-sync/modules/roster/domain/roster"

const (
	orgsPath    = "/api/v1/orgs"
	coursesPath = "/api/v1/courses"

	// CodeOrgConflict is the error code the store answers a duplicate org code with.
	CodeOrgConflict = "ORG_CODE_CONFLICT"
)

// Page is one cursor page of a collection listing.
type Page[T any] struct {
	Items      []T     `json:"items"`
	NextCursor *string `json:"next_cursor"`
}

type OrgDTO struct {
	ID   string `json:"id"`
	Code *int   `json:"code,omitempty"`
	Name string `json:"name"`
}

type CourseDTO struct {
	ID        string       `json:"id"`
	OrgID     string       `json:"org_id"`
	Stage     roster.Stage `json:"stage"`
	Grade     int          `json:"grade"`
	Year      int          `json:"year,omitempty"`
	Section   string       `json:"section,omitempty"`
	Headcount int          `json:"headcount"`
}

type CreateOrgRequest struct {
	Name string `json:"name"`
	Code int    `json:"code"`
}

type UpdateCourseRequest struct {
	Headcount int `json:"headcount"`
}

func (d OrgDTO) Record() roster.OrgRecord {
	rec := roster.OrgRecord{ID: d.ID, Name: d.Name}
	if d.Code != nil && *d.Code > 0 {
		rec.Code = *d.Code
	}
	return rec
}

func OrgFromRecord(o roster.OrgRecord) OrgDTO {
	dto := OrgDTO{ID: o.ID, Name: o.Name}
	if o.HasCode() {
		dto.Code = roster.IntPtr(o.Code)
	}
	return dto
}

func (d CourseDTO) Record() roster.CourseRecord {
	return roster.CourseRecord{
		ID:        d.ID,
		OrgID:     d.OrgID,
		Stage:     d.Stage,
		Grade:     d.Grade,
		Year:      d.Year,
		Section:   d.Section,
		Headcount: d.Headcount,
	}
}

func CourseFromRecord(c roster.CourseRecord) CourseDTO {
	return CourseDTO{
		ID:        c.ID,
		OrgID:     c.OrgID,
		Stage:     c.Stage,
		Grade:     c.Grade,
		Year:      c.Year,
		Section:   c.Section,
		Headcount: c.Headcount,
	}
}
