// Package tabular loads spreadsheet-like input files into raw roster records.
package tabular

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

type Format string

const (
	sniffLen = 3072
	xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// FormatOf picks the input format from a file name extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".tsv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported input file %q: expected .csv, .xlsx or .json", name)
	}
}

// Read decodes r according to the extension of name, or its content when the
// extension is unknown. sheet only applies to XLSX; empty selects the first sheet.
func Read(name string, r io.Reader, sheet string) ([]roster.Record, error) {
	format, err := FormatOf(name)
	if err != nil {
		if format, r, err = Sniff(r); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	switch format {
	case FormatXLSX:
		return ReadXLSX(r, sheet)
	case FormatJSON:
		return ReadJSON(r)
	default:
		return ReadCSV(r)
	}
}

// Sniff detects the format from the first bytes of r. The returned reader replays them.
func Sniff(r io.Reader) (Format, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]
	replay := io.MultiReader(bytes.NewReader(head), r)

	// Large JSON arrays are cut at sniffLen and no longer parse as JSON.
	if bytes.HasPrefix(bytes.TrimLeft(head, " \t\r\n"), []byte("[")) {
		return FormatJSON, replay, nil
	}
	mt := mimetype.Detect(head)
	switch {
	case mt.Is(xlsxMIME), mt.Is("application/zip"):
		return FormatXLSX, replay, nil
	case mt.Is("application/json"):
		return FormatJSON, replay, nil
	case mt.Is("text/csv"), mt.Is("text/tab-separated-values"), mt.Is("text/plain"):
		return FormatCSV, replay, nil
	default:
		return "", nil, fmt.Errorf("unsupported input content %s: expected CSV, XLSX or JSON", mt.String())
	}
}

func Open(path, sheet string) ([]roster.Record, error) {
	if _, err := FormatOf(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Read(path, f, sheet)
}

// fromGrid turns a header row plus data rows into records. Empty cells are left out
// so the normalizer sees them as absent; columns without a header are dropped.
func fromGrid(header []string, rows [][]string) []roster.Record {
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	out := make([]roster.Record, 0, len(rows))
	for _, row := range rows {
		rec := make(roster.Record, 0, len(header))
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			rec = append(rec, roster.Field{Key: header[i], Value: cell})
		}
		out = append(out, rec)
	}
	return out
}
