package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

func TestStore_CreateOrgConflict(t *testing.T) {
	ctx := context.Background()
	s := New()

	org, err := s.CreateOrg(ctx, "Liceo A", 100)
	require.NoError(t, err)
	require.NotEmpty(t, org.ID)

	_, err = s.CreateOrg(ctx, "Liceo A bis", 100)
	var ce *roster.ConflictError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, 100, ce.Code)

	found, err := s.FindOrgByCode(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, org.ID, found.ID)

	_, err = s.FindOrgByCode(ctx, 101)
	require.ErrorIs(t, err, roster.ErrNotFound)
	require.EqualValues(t, 2, s.CreateCalls())
}

func TestStore_UpdateCourseHeadcount(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed(nil, []roster.CourseRecord{{ID: "c1", OrgID: "o1", Stage: roster.StagePrimary, Grade: 1, Headcount: 3}})

	require.NoError(t, s.UpdateCourseHeadcount(ctx, "c1", 30))
	c, ok := s.Course("c1")
	require.True(t, ok)
	require.Equal(t, 30, c.Headcount)

	require.ErrorIs(t, s.UpdateCourseHeadcount(ctx, "nope", 1), roster.ErrNotFound)

	s.FailUpdates = map[string]error{"c1": errors.New("boom")}
	require.ErrorIs(t, s.UpdateCourseHeadcount(ctx, "c1", 31), roster.ErrRemote)
}

func TestStore_FetchOrder(t *testing.T) {
	s := New()
	s.Seed([]roster.OrgRecord{{ID: "b", Code: 2}, {ID: "a", Code: 1}}, nil)

	orgs, err := s.FetchAllOrgs(context.Background())
	require.NoError(t, err)
	require.Equal(t, "b", orgs[0].ID)
	require.Equal(t, "a", orgs[1].ID)
}

func TestDryRun_KeepsWritesLocal(t *testing.T) {
	ctx := context.Background()
	base := New()
	base.Seed(
		[]roster.OrgRecord{{ID: "o1", Code: 1, Name: "Existing"}},
		[]roster.CourseRecord{{ID: "c1", OrgID: "o1", Stage: roster.StagePrimary, Grade: 1, Headcount: 5}},
	)
	dry := NewDryRun(base)

	org, err := dry.CreateOrg(ctx, "Nuevo", 2)
	require.NoError(t, err)
	require.Equal(t, "dry-run-1", org.ID)

	_, err = dry.CreateOrg(ctx, "Again", 2)
	require.ErrorIs(t, err, roster.ErrConflict)
	_, err = dry.CreateOrg(ctx, "Existing", 1)
	require.ErrorIs(t, err, roster.ErrConflict)

	found, err := dry.FindOrgByCode(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, org.ID, found.ID)

	require.NoError(t, dry.UpdateCourseHeadcount(ctx, "c1", 40))
	c, _ := base.Course("c1")
	require.Equal(t, 5, c.Headcount)
	require.Equal(t, map[string]int{"c1": 40}, dry.PlannedHeadcounts())
	require.Len(t, dry.PlannedOrgs(), 1)
	require.Equal(t, 1, base.OrgCount())
}
