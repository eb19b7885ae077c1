package services

import (
	"sort"
	"time"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

// Summarize aggregates row results into a job summary. Results are copied and sorted by
// row index; the input slice is left untouched.
func Summarize(jobID string, startedAt, finishedAt time.Time, results []roster.RowResult, cancelled bool) roster.JobSummary {
	sorted := append([]roster.RowResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RowIndex < sorted[j].RowIndex })

	summary := roster.JobSummary{
		JobID:      jobID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Elapsed:    finishedAt.Sub(startedAt),
		RowsTotal:  len(sorted),
		Cancelled:  cancelled,
		Results:    sorted,
	}

	orgs := make(map[string]struct{})
	for _, r := range sorted {
		switch r.Outcome {
		case roster.OutcomeUpdated:
			summary.Updated++
			summary.CoursesUpdated++
		case roster.OutcomeCreated:
			summary.Created++
			summary.CoursesUpdated++
		case roster.OutcomeSkipped:
			summary.Skipped++
		case roster.OutcomeFailed:
			summary.Errors++
		}
		if r.OrgID != "" {
			orgs[r.OrgID] = struct{}{}
		}
		if r.OrgCreated {
			summary.OrgsCreated++
		}
	}
	summary.OrgsTotal = len(orgs)
	return summary
}
