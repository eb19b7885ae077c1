package roster

import "context"

// Store is the canonical remote data store the engine reconciles against.
type Store interface {
	FetchAllOrgs(ctx context.Context) ([]OrgRecord, error)
	FetchAllCourses(ctx context.Context) ([]CourseRecord, error)
	// FindOrgByCode returns ErrNotFound when no org has the code.
	FindOrgByCode(ctx context.Context, code int) (OrgRecord, error)
	// CreateOrg returns a *ConflictError when the code is already taken.
	CreateOrg(ctx context.Context, name string, code int) (OrgRecord, error)
	UpdateCourseHeadcount(ctx context.Context, courseID string, headcount int) error
}
