package services

import "github.com/iota-uz/roster-sync/modules/roster/domain/roster"

// JobStartedEvent is published once the snapshot index is ready.
type JobStartedEvent struct {
	JobID   string
	Rows    int
	Orgs    int
	Courses int
}

// RowProcessedEvent is published from the worker that finished the row.
type RowProcessedEvent struct {
	JobID  string
	Result roster.RowResult
	Done   int
	Total  int
}

type JobFinishedEvent struct {
	JobID   string
	Summary roster.JobSummary
}
