package roster

import "time"

type JobStatus string

const (
	JobQueued   JobStatus = "queued"
	JobRunning  JobStatus = "running"
	JobFinished JobStatus = "finished"
	JobFailed   JobStatus = "failed"
)

// ImportJob tracks an asynchronous import started through the API.
type ImportJob struct {
	ID        string      `json:"id"`
	Status    JobStatus   `json:"status"`
	Source    string      `json:"source,omitempty"`
	Apply     bool        `json:"apply"`
	Total     int         `json:"total"`
	Done      int         `json:"done"`
	Error     string      `json:"error,omitempty"`
	Summary   *JobSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (j ImportJob) Terminal() bool {
	return j.Status == JobFinished || j.Status == JobFailed
}
