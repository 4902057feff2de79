package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

var (
	utf8BOM = []byte{0xEF, 0xBB, 0xBF}

	errNoColumns   = errors.New("no columns to parse from file")
	errInvalidUTF8 = errors.New("content is not valid UTF-8")
)

// parseCSV 先严格解析；只有裸引号（如 x"y"z）时才以 LazyQuotes 重试，
// 未闭合的引号字段始终报错.
func parseCSV(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, &ParseError{Format: FormatCSV, Err: errInvalidUTF8}
	}

	columns, raw, err := readCSV(data, false)
	if errors.Is(err, csv.ErrBareQuote) {
		columns, raw, err = readCSV(data, true)
	}

	if err != nil {
		return nil, err
	}

	return &Table{Columns: columns, Rows: buildRows(len(columns), raw)}, nil
}

func readCSV(data []byte, lazy bool) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = lazy

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, &ParseError{Format: FormatCSV, Err: errNoColumns}
	}

	if err != nil {
		return nil, nil, csvError(err)
	}

	columns := headerLabels(header)

	var raw [][]string

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, nil, csvError(err)
		}

		if len(rec) > len(columns) {
			line, _ := r.FieldPos(0)

			return nil, nil, &ParseError{
				Format: FormatCSV,
				Line:   line,
				Err:    fmt.Errorf("expected %d fields, saw %d", len(columns), len(rec)),
			}
		}

		raw = append(raw, rec)
	}

	return columns, raw, nil
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Format: FormatCSV, Line: pe.Line, Err: pe.Err}
	}

	return &ParseError{Format: FormatCSV, Err: err}
}
