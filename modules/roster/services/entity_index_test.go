package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

func secondary(grade int) roster.Level {
	return roster.Level{Stage: roster.StageSecondary, Grade: grade}
}

func TestBuildEntityIndex_Lookups(t *testing.T) {
	ix := BuildEntityIndex(
		[]roster.OrgRecord{
			{ID: "o1", Code: 100, Name: "Liceo Técnico"},
			{ID: "o2", Name: "Escuela Sin Código"},
		},
		[]roster.CourseRecord{
			{ID: "c1", OrgID: "o1", Stage: roster.StageSecondary, Grade: 1, Year: 2024, Headcount: 30},
			{ID: "c2", OrgID: "o1", Stage: roster.StageSecondary, Grade: 2, Year: 2024, Headcount: 28},
		},
	)

	org, ok := ix.OrgByCode(100)
	require.True(t, ok)
	require.Equal(t, "o1", org.ID)

	org, ok = ix.OrgByName("  LICEO tecnico ")
	require.True(t, ok)
	require.Equal(t, "o1", org.ID)

	_, ok = ix.OrgByID("o2")
	require.True(t, ok)
	_, ok = ix.OrgByCode(0)
	require.False(t, ok)

	c, ok := ix.Course(roster.NewCourseKey("o1", secondary(1), 2024))
	require.True(t, ok)
	require.Equal(t, "c1", c.ID)

	_, ok = ix.Course(roster.NewCourseKey("o1", secondary(1), 2025))
	require.False(t, ok)

	c, ok = ix.CourseIgnoringYear(roster.NewCourseKey("o1", secondary(2), 2025))
	require.True(t, ok)
	require.Equal(t, "c2", c.ID)

	orgs, courses := ix.Len()
	require.Equal(t, 2, orgs)
	require.Equal(t, 2, courses)
	require.Equal(t, []string{"escuela sin codigo", "liceo tecnico"}, ix.OrgNames())
}

func TestBuildEntityIndex_DuplicateCodeLastWins(t *testing.T) {
	ix := BuildEntityIndex([]roster.OrgRecord{
		{ID: "o1", Code: 7, Name: "First"},
		{ID: "o2", Code: 7, Name: "Second"},
	}, nil)

	org, ok := ix.OrgByCode(7)
	require.True(t, ok)
	require.Equal(t, "o2", org.ID)
	require.Len(t, ix.Warnings(), 1)

	_, ok = ix.OrgByID("o1")
	require.True(t, ok)
}

func TestEntityIndex_CourseIgnoringYearKeepsFirst(t *testing.T) {
	ix := BuildEntityIndex(nil, []roster.CourseRecord{
		{ID: "c2023", OrgID: "o1", Stage: roster.StagePrimary, Grade: 3, Year: 2023},
		{ID: "c2024", OrgID: "o1", Stage: roster.StagePrimary, Grade: 3, Year: 2024},
	})

	c, ok := ix.CourseIgnoringYear(roster.CourseKey{OrgID: "o1", Stage: roster.StagePrimary, Grade: 3, Year: 2025})
	require.True(t, ok)
	require.Equal(t, "c2023", c.ID)
}

func TestEntityIndex_InsertAndHeadcount(t *testing.T) {
	ix := BuildEntityIndex(nil, nil)
	ix.InsertOrg(roster.OrgRecord{ID: "o9", Code: 900, Name: "Nuevo"})
	ix.InsertOrg(roster.OrgRecord{ID: "o9", Code: 900, Name: "Nuevo"})
	ix.InsertCourse(roster.CourseRecord{ID: "c9", OrgID: "o9", Stage: roster.StagePrimary, Grade: 1, Year: 2025, Headcount: 10})

	orgs, courses := ix.Len()
	require.Equal(t, 1, orgs)
	require.Equal(t, 1, courses)

	ix.SetCourseHeadcount("c9", 25)
	key := roster.CourseKey{OrgID: "o9", Stage: roster.StagePrimary, Grade: 1, Year: 2025}
	c, _ := ix.Course(key)
	require.Equal(t, 25, c.Headcount)
	c, _ = ix.CourseIgnoringYear(key)
	require.Equal(t, 25, c.Headcount)

	ix.SetCourseHeadcount("missing", 1)
}

func TestEntityIndex_ConcurrentInsertAndRead(t *testing.T) {
	ix := BuildEntityIndex(nil, nil)
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(2)
		go func(code int) {
			defer wg.Done()
			ix.InsertOrg(roster.OrgRecord{ID: "id", Code: code, Name: "n"})
		}(i)
		go func(code int) {
			defer wg.Done()
			_, _ = ix.OrgByCode(code)
		}(i)
	}
	wg.Wait()
	for i := 1; i <= 50; i++ {
		_, ok := ix.OrgByCode(i)
		require.True(t, ok)
	}
}

func TestEntityIndex_LockCodeSerializes(t *testing.T) {
	ix := BuildEntityIndex(nil, nil)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := ix.lockCode(42)
			defer unlock()
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 1, maxSeen)
}

func TestBuildEntityIndex_DuplicateNameWarns(t *testing.T) {
	ix := BuildEntityIndex([]roster.OrgRecord{
		{ID: "o1", Code: 1, Name: "Escuela República"},
		{ID: "o2", Code: 2, Name: "ESCUELA  REPUBLICA"},
	}, nil)

	org, ok := ix.OrgByName("escuela republica")
	require.True(t, ok)
	require.Equal(t, "o2", org.ID)
	require.Len(t, ix.Warnings(), 1)
	require.Contains(t, ix.Warnings()[0], "organization name")
}
