package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildXLSX(t *testing.T, sheet string, grid [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "" {
		require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))
	}
	name := f.GetSheetName(0)
	for r, row := range grid {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = v
		}
		require.NoError(t, f.SetSheetRow(name, cell, &cells))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestHeadersCSV(t *testing.T) {
	e := NewExtractor(5)
	content := []byte("Qty, Desc ,,Maker\n10,Bolt,x,Acme\n")

	headers := e.Headers(content, "", 0)
	assert.Equal(t, []string{"Qty", "Desc", "Maker"}, headers, "blank headers dropped, others trimmed")
}

func TestHeadersXLSX(t *testing.T) {
	e := NewExtractor(5)
	content := buildXLSX(t, "", [][]string{
		{"Part No", "Description"},
		{"A1", "Bolt"},
	})

	assert.Equal(t, []string{"Part No", "Description"}, e.Headers(content, "", 0))
}

func TestHeadersNamedSheetAndRow(t *testing.T) {
	e := NewExtractor(5)
	content := buildXLSX(t, "BOM", [][]string{
		{"ignore", "this"},
		{"Qty", "Desc"},
		{"1", "Bolt"},
	})

	assert.Equal(t, []string{"Qty", "Desc"}, e.Headers(content, "BOM", 1))
	assert.Empty(t, e.Headers(content, "NoSuchSheet", 0), "missing sheet degrades to empty")
}

func TestHeadersCorruptContent(t *testing.T) {
	e := NewExtractor(5)

	// Zip magic but not a workbook.
	assert.Empty(t, e.Headers([]byte("PK\x03\x04garbage"), "", 0))
	// Header row beyond the grid.
	assert.Empty(t, e.Headers([]byte("a,b\n"), "", 5))
	assert.Empty(t, e.Headers(nil, "", 0))
}

func TestSamples(t *testing.T) {
	e := NewExtractor(2)
	content := []byte("Qty,Desc\n10,Bolt\n,Washer\n30,Nut\n")

	samples := e.Samples(content, "", 0, 0)
	assert.Equal(t, []string{"10"}, samples["Qty"], "empty cells skipped, capped at sample size")
	assert.Equal(t, []string{"Bolt", "Washer"}, samples["Desc"])
}

func TestSamplesExplicitCount(t *testing.T) {
	e := NewExtractor(2)
	content := []byte("Qty\n1\n2\n3\n")

	samples := e.Samples(content, "", 0, 3)
	assert.Equal(t, []string{"1", "2", "3"}, samples["Qty"])
}

func TestRows(t *testing.T) {
	e := NewExtractor(5)
	content := []byte("Qty,,Desc\n10,skip,Bolt\n20\n")

	headers, rows := e.Rows(content, "", 0)
	assert.Equal(t, []string{"Qty", "Desc"}, headers)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"10", "Bolt"}, rows[0], "blank-header column dropped")
	assert.Equal(t, []string{"20", ""}, rows[1], "short rows padded to header count")
}

func TestRowsCorruptContent(t *testing.T) {
	e := NewExtractor(5)
	headers, rows := e.Rows([]byte("PK\x03\x04nope"), "", 0)
	assert.Empty(t, headers)
	assert.Empty(t, rows)
}

func TestWriteReadRoundTrip(t *testing.T) {
	e := NewExtractor(5)
	headers := []string{"Factwise_ID", "item_name"}
	rows := [][]string{{"A-1", "Bolt"}, {"B-2", "Washer"}}

	xlsxBytes, err := WriteXLSX(headers, rows)
	require.NoError(t, err)
	gotHeaders, gotRows := e.Rows(xlsxBytes, "", 0)
	assert.Equal(t, headers, gotHeaders)
	assert.Equal(t, rows, gotRows)

	csvBytes, err := WriteCSV(headers, rows)
	require.NoError(t, err)
	gotHeaders, gotRows = e.Rows(csvBytes, "", 0)
	assert.Equal(t, headers, gotHeaders)
	assert.Equal(t, rows, gotRows)
}
