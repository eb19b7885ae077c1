package tabular

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
	"github.com/iota-uz/roster-sync/modules/roster/services"
)

func TestReadCSV_SemicolonWithBOM(t *testing.T) {
	in := "\xEF\xBB\xBFAGNO;RBD;NOM_RBD;MAT_TOTAL\r\n2025;100;\"Liceo; A\";1.234\r\n2025;200;;\r\n"

	recs, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, roster.Record{
		{Key: "AGNO", Value: "2025"},
		{Key: "RBD", Value: "100"},
		{Key: "NOM_RBD", Value: "Liceo; A"},
		{Key: "MAT_TOTAL", Value: "1.234"},
	}, recs[0])
	require.Equal(t, roster.Record{{Key: "AGNO", Value: "2025"}, {Key: "RBD", Value: "200"}}, recs[1])

	row := services.NormalizeRow(0, recs[0])
	require.Equal(t, 1234, *row.Headcount)
	require.Equal(t, "Liceo; A", row.OrgName)
}

func TestReadCSV_CommaAndMissingHeader(t *testing.T) {
	recs, err := ReadCSV(strings.NewReader("org_code,level,headcount\n5,\"1° Medio, A\",30\n"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	v, ok := recs[0].Get("level")
	require.True(t, ok)
	require.Equal(t, "1° Medio, A", v)

	_, err = ReadCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestSniffDelimiter(t *testing.T) {
	require.Equal(t, ';', sniffDelimiter([]byte("a;b;c\n1,2;3")))
	require.Equal(t, ',', sniffDelimiter([]byte("\"a;b\",c")))
	require.Equal(t, '\t', sniffDelimiter([]byte("a\tb\tc")))
	require.Equal(t, ',', sniffDelimiter([]byte("single")))
}

func xlsxFixture(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"ignored"}))
	_, err := f.NewSheet("Matricula")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Matricula", "A1", &[]any{"RBD", "", "DES_GRADO", "MAT_TOTAL"}))
	require.NoError(t, f.SetSheetRow("Matricula", "A2", &[]any{100, "x", "2° Medio", 41}))
	require.NoError(t, f.SetSheetRow("Matricula", "A3", &[]any{200, nil, "8° Básico", 17}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadXLSX_SelectsSheet(t *testing.T) {
	data := xlsxFixture(t)

	recs, err := ReadXLSX(bytes.NewReader(data), "Matricula")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, roster.Record{
		{Key: "RBD", Value: "100"},
		{Key: "DES_GRADO", Value: "2° Medio"},
		{Key: "MAT_TOTAL", Value: "41"},
	}, recs[0])

	row := services.NormalizeRow(1, recs[1])
	require.Equal(t, 200, *row.OrgCode)
	require.Equal(t, 17, *row.Headcount)

	first, err := ReadXLSX(bytes.NewReader(data), "")
	require.NoError(t, err)
	require.Empty(t, first)

	_, err = ReadXLSX(bytes.NewReader(data), "Nope")
	require.ErrorContains(t, err, `sheet "Nope" not found`)
}

func TestReadJSON_KeepsOrderAndNumbers(t *testing.T) {
	recs, err := ReadJSON(strings.NewReader(`[{"rbd": 100, "rbd ": "7", "nivel": "3° Medio", "skip": null}, {}]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, roster.Record{
		{Key: "rbd", Value: json.Number("100")},
		{Key: "rbd ", Value: "7"},
		{Key: "nivel", Value: "3° Medio"},
	}, recs[0])
	require.Empty(t, recs[1])

	row := services.NormalizeRow(0, recs[0])
	require.Equal(t, 100, *row.OrgCode)

	_, err = ReadJSON(strings.NewReader(`[1]`))
	require.ErrorContains(t, err, "row 0")
}

func TestOpen_ByExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "rows.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte("rbd,mat_total\n1,2\n"), 0o644))
	xlsxPath := filepath.Join(dir, "rows.xlsx")
	require.NoError(t, os.WriteFile(xlsxPath, xlsxFixture(t), 0o644))

	recs, err := Open(csvPath, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	recs, err = Open(xlsxPath, "Matricula")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	_, err = Open(filepath.Join(dir, "rows.ods"), "")
	require.ErrorContains(t, err, "unsupported input file")
}

func TestRead_SniffsContentWithoutExtension(t *testing.T) {
	recs, err := Read("upload", bytes.NewReader(xlsxFixture(t)), "Matricula")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	recs, err = Read("upload", strings.NewReader("rbd;mat_total\n100;5\n"), "")
	require.NoError(t, err)
	require.Equal(t, roster.Record{{Key: "rbd", Value: "100"}, {Key: "mat_total", Value: "5"}}, recs[0])

	big := "[" + strings.Repeat(`{"rbd": 1, "mat_total": 2},`, 200) + `{"rbd": 3}]`
	recs, err = Read("blob", strings.NewReader(big), "")
	require.NoError(t, err)
	require.Len(t, recs, 201)

	_, err = Read("scan", bytes.NewReader([]byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")), "")
	require.ErrorContains(t, err, "unsupported input content")
}
