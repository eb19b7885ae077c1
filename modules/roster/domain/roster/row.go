package roster

import "strings"

// Field is one raw key/value pair of an input record.
type Field struct {
	Key   string
	Value any
}

// Record is one raw input record with keys in source order.
type Record []Field

// Get returns the first value stored under key.
func (r Record) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// RecordFromMap builds a record from a decoded JSON object. Keys follow the given order.
func RecordFromMap(m map[string]any, order []string) Record {
	rec := make(Record, 0, len(m))
	for _, k := range order {
		if v, ok := m[k]; ok {
			rec = append(rec, Field{Key: k, Value: v})
		}
	}
	return rec
}

// ImportRow is a normalized input row. Pointer fields are nil when absent.
type ImportRow struct {
	Index     int
	Year      *int
	OrgCode   *int
	OrgName   string
	OrgID     string
	LevelRaw  string
	LevelCode *int
	Headcount *int

	Subject  string
	Ordering string
	Section  string

	// HeadcountRaw keeps the original text when the headcount could not be parsed.
	HeadcountRaw string
	// Issues are non-fatal notes collected while coercing fields.
	Issues []string
}

// HasIdentity reports whether the row names an org in any way.
func (r ImportRow) HasIdentity() bool {
	return strings.TrimSpace(r.OrgID) != "" || r.OrgCode != nil || strings.TrimSpace(r.OrgName) != ""
}

// IsBlank reports whether the row carries nothing worth processing.
func (r ImportRow) IsBlank() bool {
	return !r.HasIdentity() &&
		r.Headcount == nil &&
		r.HeadcountRaw == "" &&
		r.LevelCode == nil &&
		strings.TrimSpace(r.LevelRaw) == ""
}

func IntPtr(v int) *int {
	return &v
}
