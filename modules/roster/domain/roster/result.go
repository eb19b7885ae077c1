package roster

import "time"

type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeCreated Outcome = "created"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// RowResult is the recorded outcome of one input row.
type RowResult struct {
	RowIndex   int      `json:"row_index"`
	Outcome    Outcome  `json:"outcome"`
	OrgID      string   `json:"org_id,omitempty"`
	CourseID   string   `json:"course_id,omitempty"`
	OrgCreated bool     `json:"org_created,omitempty"`
	ErrorCode  string   `json:"error_code,omitempty"`
	Messages   []string `json:"messages,omitempty"`
}

// JobSummary is the aggregate result of one import job. Immutable once returned.
type JobSummary struct {
	JobID          string        `json:"job_id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Elapsed        time.Duration `json:"elapsed_ns"`
	RowsTotal      int           `json:"rows_total"`
	OrgsTotal      int           `json:"orgs_total"`
	OrgsCreated    int           `json:"orgs_created"`
	CoursesUpdated int           `json:"courses_updated"`
	Updated        int           `json:"updated"`
	Created        int           `json:"created"`
	Skipped        int           `json:"skipped"`
	Errors         int           `json:"errors"`
	Cancelled      bool          `json:"cancelled,omitempty"`
	Warnings       []string      `json:"warnings,omitempty"`
	Results        []RowResult   `json:"results"`
}

// Failures returns the failed rows in row order.
func (s JobSummary) Failures() []RowResult {
	out := make([]RowResult, 0, s.Errors)
	for _, r := range s.Results {
		if r.Outcome == OutcomeFailed {
			out = append(out, r)
		}
	}
	return out
}
