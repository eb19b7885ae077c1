package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

func rec(kv ...any) roster.Record {
	out := make(roster.Record, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, roster.Field{Key: kv[i].(string), Value: kv[i+1]})
	}
	return out
}

func TestNormalizeRow_SpreadsheetAliases(t *testing.T) {
	row := NormalizeRow(3, rec(
		"AGNO", "2025",
		"RBD", "12345",
		"NOM_RBD", "Liceo Bicentenario",
		"COD_GRADO", "12",
		"DES_GRADO", "1° Medio",
		"MAT_TOTAL", "1.234",
		"LETRA", "A",
	))

	require.Equal(t, 3, row.Index)
	require.Equal(t, 2025, *row.Year)
	require.Equal(t, 12345, *row.OrgCode)
	require.Equal(t, "Liceo Bicentenario", row.OrgName)
	require.Equal(t, 12, *row.LevelCode)
	require.Equal(t, "1° Medio", row.LevelRaw)
	require.Equal(t, 1234, *row.Headcount)
	require.Equal(t, "A", row.Section)
	require.Empty(t, row.Issues)
}

func TestNormalizeRow_CamelCaseAndJSONNumbers(t *testing.T) {
	row := NormalizeRow(0, rec(
		"orgCode", float64(100),
		"orgName", "Liceo A",
		"levelCode", json.Number("13"),
		"year", 2025,
		"headcount", float64(28),
	))
	require.Equal(t, 100, *row.OrgCode)
	require.Equal(t, "Liceo A", row.OrgName)
	require.Equal(t, 13, *row.LevelCode)
	require.Equal(t, 2025, *row.Year)
	require.Equal(t, 28, *row.Headcount)
}

func TestNormalizeRow_AliasPriority(t *testing.T) {
	row := NormalizeRow(0, rec("nombre", "Second", "org_name", "First"))
	require.Equal(t, "First", row.OrgName)

	row = NormalizeRow(0, rec("org_name", "  ", "nombre", "Fallback"))
	require.Equal(t, "Fallback", row.OrgName)
}

func TestNormalizeRow_UnparseableNumberIsAbsent(t *testing.T) {
	row := NormalizeRow(0, rec("rbd", "100", "matricula", "treinta"))

	require.Nil(t, row.Headcount)
	require.Equal(t, "treinta", row.HeadcountRaw)
	require.Len(t, row.Issues, 1)
	require.Contains(t, row.Issues[0], "headcount")
}

func TestNormalizeRow_Blank(t *testing.T) {
	row := NormalizeRow(0, rec("AGNO", "", "RBD", " "))
	require.True(t, row.IsBlank())
	require.Nil(t, row.Year)
}

func TestParseLocaleInt(t *testing.T) {
	ok := map[string]int{
		"30":       30,
		" 30 ":     30,
		"1.234":    1234,
		"1,234":    1234,
		"1 234":    1234,
		"1.234.567": 1234567,
		"30,0":     30,
		"30.00":    30,
		"1.234,00": 1234,
		"1,234.00": 1234,
		"-5":       -5,
		"2.025":    2025,
	}
	for in, want := range ok {
		got, parsed := parseLocaleInt(in)
		require.True(t, parsed, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "abc", "30,5", "1e3", "0x10", "0.500", "12a"} {
		_, parsed := parseLocaleInt(in)
		require.False(t, parsed, in)
	}
}

func TestCoerceInt(t *testing.T) {
	n, ok := coerceInt(float64(12))
	require.True(t, ok)
	require.Equal(t, 12, n)

	_, ok = coerceInt(12.5)
	require.False(t, ok)

	_, ok = coerceInt(true)
	require.False(t, ok)
}
