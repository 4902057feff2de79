package tabular_test

import (
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yeisme/dataviz/pkg/internal/tabular"
)

func TestFormatFromFilename(t *testing.T) {
	cases := map[string]tabular.Format{
		"data.csv":    tabular.FormatCSV,
		"DATA.CSV":    tabular.FormatCSV,
		"report.xlsx": tabular.FormatSpreadsheet,
		"report.xls":  tabular.FormatSpreadsheet,
		"noext":       tabular.FormatSpreadsheet,
		"csv":         tabular.FormatSpreadsheet,
	}

	for name, want := range cases {
		assert.Equal(t, want, tabular.FormatFromFilename(name), name)
	}
}

func TestParseCSVTypes(t *testing.T) {
	data := []byte("name,age,score,active,note\nAlice,30,1.5,true,x\nBob,25,2,FALSE,NA\n")

	tbl, err := tabular.Parse(tabular.FormatCSV, data)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age", "score", "active", "note"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []tabular.Value{"Alice", int64(30), 1.5, true, "x"}, tbl.Rows[0])
	assert.Equal(t, []tabular.Value{"Bob", int64(25), 2.0, false, nil}, tbl.Rows[1])
}

func TestParseCSVMixedColumnStaysString(t *testing.T) {
	tbl, err := tabular.Parse(tabular.FormatCSV, []byte("code\n007\nabc\n"))
	require.NoError(t, err)

	assert.Equal(t, "007", tbl.Rows[0][0])
	assert.Equal(t, "abc", tbl.Rows[1][0])
}

func TestParseCSVHeaderFixups(t *testing.T) {
	tbl, err := tabular.Parse(tabular.FormatCSV, []byte("\xEF\xBB\xBFa,,a\n1,2,3\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "Unnamed: 1", "a.1"}, tbl.Columns)
}

func TestParseCSVShortRowPadded(t *testing.T) {
	tbl, err := tabular.Parse(tabular.FormatCSV, []byte("a,b,c\n1\n"))
	require.NoError(t, err)

	assert.Equal(t, []tabular.Value{int64(1), nil, nil}, tbl.Rows[0])
}

func TestParseCSVQuoted(t *testing.T) {
	tbl, err := tabular.Parse(tabular.FormatCSV, []byte("city,desc\n\"New York\",\"line1\nline2\"\n"))
	require.NoError(t, err)

	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "line1\nline2", tbl.Rows[0][1])
}

func TestParseCSVErrors(t *testing.T) {
	cases := map[string][]byte{
		"empty":        {},
		"too many":     []byte("a,b\n1,2,3\n"),
		"invalid utf8": {0xff, 0xfe, 0x00, 0x41},
		"open quote":   []byte("a,b\n1,\"2\n3,4\n"),
	}

	for name, data := range cases {
		_, err := tabular.Parse(tabular.FormatCSV, data)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, tabular.ErrParse), name)

		var pe *tabular.ParseError
		require.True(t, errors.As(err, &pe), name)
		assert.Equal(t, tabular.FormatCSV, pe.Format)
	}
}

func TestParseCSVUnterminatedQuoteKeepsRowsApart(t *testing.T) {
	_, err := tabular.Parse(tabular.FormatCSV, []byte("a,b\n1,\"2\n3,4\n"))
	require.ErrorIs(t, err, csv.ErrQuote)
}

func TestParseCSVBareQuoteTolerated(t *testing.T) {
	tbl, err := tabular.Parse(tabular.FormatCSV, []byte("a,b\n1,x\"y\"z\n2,ok\n"))
	require.NoError(t, err)

	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, `x"y"z`, tbl.Rows[0][1])
	assert.Equal(t, "ok", tbl.Rows[1][1])
}

func TestParseCSVTooManyFieldsReportsLine(t *testing.T) {
	_, err := tabular.Parse(tabular.FormatCSV, []byte("a,b\n1,2\n3,4,5\n"))

	var pe *tabular.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Line)
}

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	return buf.Bytes()
}

func TestParseSpreadsheet(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Product Name", "Qty", "Price"},
		{"apple", 3, 1.25},
		{"pear", 10, 2},
	})

	tbl, err := tabular.Parse(tabular.FormatSpreadsheet, data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Product Name", "Qty", "Price"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []tabular.Value{"apple", int64(3), 1.25}, tbl.Rows[0])
	assert.Equal(t, []tabular.Value{"pear", int64(10), 2.0}, tbl.Rows[1])
}

func TestParseSpreadsheetBooleans(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"active", "name", "count"},
		{true, "x", 1},
		{false, "y", 0},
	})

	tbl, err := tabular.Parse(tabular.FormatSpreadsheet, data)
	require.NoError(t, err)

	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []tabular.Value{true, "x", int64(1)}, tbl.Rows[0])
	assert.Equal(t, []tabular.Value{false, "y", int64(0)}, tbl.Rows[1])
}

func TestParseSpreadsheetWideRow(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"a"},
		{"x", "extra"},
	})

	tbl, err := tabular.Parse(tabular.FormatSpreadsheet, data)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "Unnamed: 1"}, tbl.Columns)
	assert.Equal(t, []tabular.Value{"x", "extra"}, tbl.Rows[0])
}

func TestParseSpreadsheetEmptySheet(t *testing.T) {
	tbl, err := tabular.Parse(tabular.FormatSpreadsheet, buildWorkbook(t, nil))
	require.NoError(t, err)

	assert.Empty(t, tbl.Columns)
	assert.Empty(t, tbl.Rows)
}

func TestParseSpreadsheetMalformed(t *testing.T) {
	_, err := tabular.ParseFile("bad.xlsx", []byte("definitely not a zip archive"))
	require.Error(t, err)
	assert.ErrorIs(t, err, tabular.ErrParse)
}

func TestParseFileCSVSuffixWinsOverContent(t *testing.T) {
	// 工作簿字节以 .csv 命名时仍按 CSV 解析，zip 头非 UTF-8 导致失败
	data := buildWorkbook(t, [][]any{{"a"}, {1}})

	_, err := tabular.ParseFile("workbook.csv", data)

	var pe *tabular.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, tabular.FormatCSV, pe.Format)
}
