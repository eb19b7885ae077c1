// Package reportfile renders a job summary as a downloadable report.
package reportfile

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

const (
	summarySheet = "Summary"
	rowsSheet    = "Rows"
)

var rowColumns = []string{"row", "outcome", "org_id", "course_id", "org_created", "error_code", "messages"}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatXLSX, nil
	case FormatXLSX, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported report format %q", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

func Write(w io.Writer, f Format, s roster.JobSummary) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, s)
	case FormatJSON:
		return WriteJSON(w, s)
	default:
		return WriteXLSX(w, s)
	}
}

// WriteCSV writes one line per row. Row numbers are 1-based data lines, the header excluded.
func WriteCSV(w io.Writer, s roster.JobSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rowColumns); err != nil {
		return err
	}
	for _, r := range s.Results {
		if err := cw.Write(rowCells(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteJSON(w io.Writer, s roster.JobSummary) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func WriteXLSX(w io.Writer, s roster.JobSummary) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	for i, kv := range summaryLines(s) {
		if err := f.SetSheetRow(summarySheet, cell(1, i+1), &kv); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 22); err != nil {
		return err
	}

	if _, err := f.NewSheet(rowsSheet); err != nil {
		return err
	}
	header := make([]any, len(rowColumns))
	for i, c := range rowColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(rowsSheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range s.Results {
		cells := rowCells(r)
		values := make([]any, len(cells))
		values[0] = r.RowIndex + 1
		for j := 1; j < len(cells); j++ {
			values[j] = cells[j]
		}
		if err := f.SetSheetRow(rowsSheet, cell(1, i+2), &values); err != nil {
			return err
		}
	}
	if err := f.AutoFilter(rowsSheet, fmt.Sprintf("A1:%s", cell(len(rowColumns), len(s.Results)+1)), nil); err != nil {
		return err
	}
	if err := f.SetPanes(rowsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return f.Write(w)
}

func summaryLines(s roster.JobSummary) [][]any {
	lines := [][]any{
		{"job_id", s.JobID},
		{"started_at", s.StartedAt.Format("2006-01-02 15:04:05Z07:00")},
		{"elapsed", s.Elapsed.String()},
		{"rows_total", s.RowsTotal},
		{"orgs_total", s.OrgsTotal},
		{"orgs_created", s.OrgsCreated},
		{"courses_updated", s.CoursesUpdated},
		{"updated", s.Updated},
		{"created", s.Created},
		{"skipped", s.Skipped},
		{"errors", s.Errors},
		{"cancelled", s.Cancelled},
	}
	for _, w := range s.Warnings {
		lines = append(lines, []any{"warning", w})
	}
	return lines
}

func rowCells(r roster.RowResult) []string {
	return []string{
		strconv.Itoa(r.RowIndex + 1),
		string(r.Outcome),
		r.OrgID,
		r.CourseID,
		strconv.FormatBool(r.OrgCreated),
		r.ErrorCode,
		strings.Join(r.Messages, "; "),
	}
}

func cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "A1"
	}
	return name
}
