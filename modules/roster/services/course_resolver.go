package services

import (
	"context"
	"fmt"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

type CourseResolution struct {
	Course roster.CourseRecord
	Found  bool
	Notes  []string
}

// CourseResolver locates the course of a row and updates its headcount.
// Courses are never created here.
type CourseResolver struct {
	store roster.Store
	index *EntityIndex
}

func NewCourseResolver(store roster.Store, index *EntityIndex) *CourseResolver {
	return &CourseResolver{store: store, index: index}
}

// Resolve looks up (orgID, level, year), then (orgID, level) ignoring year. A miss is
// reported with Found=false and no error.
func (r *CourseResolver) Resolve(ctx context.Context, orgID string, level roster.Level, year int, headcount *int) (CourseResolution, error) {
	if headcount == nil || *headcount <= 0 {
		return CourseResolution{}, fmt.Errorf("%w: headcount must be a positive whole number", roster.ErrInput)
	}

	var notes []string
	key := roster.NewCourseKey(orgID, level, year)
	course, ok := r.index.Course(key)
	if !ok {
		if course, ok = r.index.CourseIgnoringYear(key); ok && course.Year != year {
			notes = append(notes, fmt.Sprintf("matched course %s of year %d ignoring row year %d", course.ID, course.Year, year))
		}
	}
	if !ok {
		notes = append(notes, fmt.Sprintf("no course %s for organization %s; courses are not created by import", key.Tuple(), orgID))
		return CourseResolution{Notes: notes}, nil
	}

	if err := r.store.UpdateCourseHeadcount(ctx, course.ID, *headcount); err != nil {
		return CourseResolution{Course: course, Found: true, Notes: notes},
			fmt.Errorf("update headcount of course %s: %w", course.ID, err)
	}
	r.index.SetCourseHeadcount(course.ID, *headcount)
	course.Headcount = *headcount
	return CourseResolution{Course: course, Found: true, Notes: notes}, nil
}
