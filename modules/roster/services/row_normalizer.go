package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

// CanonicalField is a normalized attribute name shared by all input layouts.
type CanonicalField string

const (
	FieldYear      CanonicalField = "year"
	FieldOrgCode   CanonicalField = "org_code"
	FieldOrgName   CanonicalField = "org_name"
	FieldOrgID     CanonicalField = "org_id"
	FieldLevelRaw  CanonicalField = "level_raw"
	FieldLevelCode CanonicalField = "level_code"
	FieldHeadcount CanonicalField = "headcount"
	FieldSubject   CanonicalField = "subject"
	FieldOrdering  CanonicalField = "ordering"
	FieldSection   CanonicalField = "section"
)

// fieldAliases lists folded raw keys per field, highest priority first.
// Keys are compared after foldKey, so "AÑO", "año" and "ano" are the same alias.
var fieldAliases = map[CanonicalField][]string{
	FieldYear:      {"year", "agno", "ano", "anio", "periodo", "schoolyear", "anoescolar"},
	FieldOrgCode:   {"orgcode", "rbd", "codrbd", "codigorbd", "codigo", "codigoestablecimiento", "schoolcode", "code"},
	FieldOrgName:   {"orgname", "nomrbd", "nombre", "nombreestablecimiento", "establecimiento", "colegio", "schoolname", "name"},
	FieldOrgID:     {"orgid", "schoolid", "idestablecimiento", "idcolegio", "colegioid"},
	FieldLevelRaw:  {"levelraw", "level", "nivel", "curso", "grado", "grade", "desgrado", "nombrecurso"},
	FieldLevelCode: {"levelcode", "codgrado", "codnivel", "codigonivel", "codigogrado", "gradecode"},
	FieldHeadcount: {"headcount", "mattotal", "matricula", "alumnos", "totalalumnos", "students", "enrollment", "cantidad"},
	FieldSubject:   {"subject", "asignatura", "ramo"},
	FieldOrdering:  {"ordering", "orden", "order", "posicion"},
	FieldSection:   {"section", "letra", "letracurso", "seccion", "paralelo"},
}

// NormalizeRow maps a raw record onto an ImportRow. It never fails: unknown keys are
// ignored and unparseable numbers become absent with a note in Issues.
func NormalizeRow(index int, rec roster.Record) roster.ImportRow {
	values := foldRecord(rec)
	row := roster.ImportRow{Index: index}

	row.OrgID = lookupString(values, FieldOrgID)
	row.OrgName = lookupString(values, FieldOrgName)
	row.LevelRaw = lookupString(values, FieldLevelRaw)
	row.Subject = lookupString(values, FieldSubject)
	row.Ordering = lookupString(values, FieldOrdering)
	row.Section = lookupString(values, FieldSection)

	row.Year, _ = lookupInt(&row, values, FieldYear)
	row.OrgCode, _ = lookupInt(&row, values, FieldOrgCode)
	if row.OrgCode != nil && *row.OrgCode <= 0 {
		row.Issues = append(row.Issues, fmt.Sprintf("%s: %d is not a valid code; ignored", FieldOrgCode, *row.OrgCode))
		row.OrgCode = nil
	}
	row.LevelCode, _ = lookupInt(&row, values, FieldLevelCode)

	var raw string
	row.Headcount, raw = lookupInt(&row, values, FieldHeadcount)
	if row.Headcount == nil {
		row.HeadcountRaw = raw
	}
	return row
}

func foldRecord(rec roster.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for _, f := range rec {
		k := foldKey(f.Key)
		if k == "" {
			continue
		}
		if _, seen := out[k]; seen {
			continue
		}
		out[k] = f.Value
	}
	return out
}

func lookup(values map[string]any, field CanonicalField) (any, bool) {
	for _, alias := range fieldAliases[field] {
		v, ok := values[alias]
		if !ok || isBlank(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

func lookupString(values map[string]any, field CanonicalField) string {
	v, ok := lookup(values, field)
	if !ok {
		return ""
	}
	return stringify(v)
}

// lookupInt returns the coerced value, or nil and the raw text when it does not parse.
func lookupInt(row *roster.ImportRow, values map[string]any, field CanonicalField) (*int, string) {
	v, ok := lookup(values, field)
	if !ok {
		return nil, ""
	}
	n, ok := coerceInt(v)
	if !ok {
		raw := stringify(v)
		row.Issues = append(row.Issues, fmt.Sprintf("%s: %q is not a whole number; ignored", field, raw))
		return nil, raw
	}
	return &n, ""
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func coerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float32:
		return integralFloat(float64(t))
	case float64:
		return integralFloat(t)
	case json.Number:
		return parseLocaleInt(t.String())
	case string:
		return parseLocaleInt(t)
	default:
		return 0, false
	}
}

func integralFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// parseLocaleInt accepts spreadsheet renderings of whole numbers: "1.234", "1,234",
// "1 234", "30,0", "1.234,00". A single separator followed by exactly three digits is
// read as a thousands separator.
func parseLocaleInt(s string) (int, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'', '_':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	sign := ""
	if s[0] == '-' || s[0] == '+' {
		sign, s = s[:1], s[1:]
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return 0, false
		}
	}

	lastDot, lastComma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0 || lastComma >= 0:
		sep := "."
		if lastComma >= 0 {
			sep = ","
		}
		if strings.Count(s, sep) > 1 {
			s = strings.ReplaceAll(s, sep, "")
			break
		}
		idx := strings.Index(s, sep)
		intPart, frac := s[:idx], s[idx+1:]
		if len(frac) == 3 && len(intPart) >= 1 && len(intPart) <= 3 && intPart != "0" {
			s = intPart + frac
		} else {
			s = intPart + "." + frac
		}
	}

	f, err := strconv.ParseFloat(sign+s, 64)
	if err != nil {
		return 0, false
	}
	return integralFloat(f)
}
