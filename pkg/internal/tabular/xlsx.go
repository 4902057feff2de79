package tabular

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

var errNoSheets = errors.New("workbook has no sheets")

// parseSpreadsheet 读取第一个工作表，首行作为表头；空工作表返回空表.
func parseSpreadsheet(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Format: FormatSpreadsheet, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Format: FormatSpreadsheet, Err: errNoSheets}
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ParseError{Format: FormatSpreadsheet, Err: fmt.Errorf("sheet %q: %w", sheets[0], err)}
	}

	if len(rows) == 0 {
		return &Table{}, nil
	}

	if err := restoreBooleans(f, sheets[0], rows); err != nil {
		return nil, &ParseError{Format: FormatSpreadsheet, Err: err}
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	header := make([]string, width)
	copy(header, rows[0])

	return &Table{Columns: headerLabels(header), Rows: buildRows(width, rows[1:])}, nil
}

// restoreBooleans 原始值模式下布尔单元格读出为 "1"/"0"，按单元格类型改写为 TRUE/FALSE.
func restoreBooleans(f *excelize.File, sheet string, rows [][]string) error {
	for r, row := range rows {
		for c, v := range row {
			if v != "0" && v != "1" {
				continue
			}

			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}

			typ, err := f.GetCellType(sheet, cell)
			if err != nil {
				return fmt.Errorf("cell %s: %w", cell, err)
			}

			if typ != excelize.CellTypeBool {
				continue
			}

			row[c] = "FALSE"
			if v == "1" {
				row[c] = "TRUE"
			}
		}
	}

	return nil
}
