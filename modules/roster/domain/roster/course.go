package roster

import "fmt"

// CourseRecord is a dated, leveled sub-unit of an org. Year is zero when unknown.
// Section is informational and not part of the match key.
type CourseRecord struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Stage     Stage  `json:"stage"`
	Grade     int    `json:"grade"`
	Year      int    `json:"year,omitempty"`
	Section   string `json:"section,omitempty"`
	Headcount int    `json:"headcount"`
}

func (c CourseRecord) Level() Level {
	return Level{Stage: c.Stage, Grade: c.Grade}
}

func (c CourseRecord) Key() CourseKey {
	return CourseKey{OrgID: c.OrgID, Stage: c.Stage, Grade: c.Grade, Year: c.Year}
}

// CourseKey is the identity a row is matched on.
type CourseKey struct {
	OrgID string
	Stage Stage
	Grade int
	Year  int
}

func NewCourseKey(orgID string, level Level, year int) CourseKey {
	return CourseKey{OrgID: orgID, Stage: level.Stage, Grade: level.Grade, Year: year}
}

// WithoutYear drops the year for year-agnostic lookups.
func (k CourseKey) WithoutYear() CourseKey {
	k.Year = 0
	return k
}

// Tuple renders the (Stage,Grade,Year) part, e.g. "(Secondary,1,2025)".
func (k CourseKey) Tuple() string {
	if k.Year == 0 {
		return fmt.Sprintf("(%s,%d,-)", k.Stage.Title(), k.Grade)
	}
	return fmt.Sprintf("(%s,%d,%d)", k.Stage.Title(), k.Grade, k.Year)
}
