// Package tabular 把 CSV / XLSX 字节流解析为有序列 + 弱类型单元格的表格，并负责列名规范化.
//
// 格式只由文件名后缀决定：.csv 按逗号分隔文本解析，其余一律按 XLSX 工作簿解析，
// 不做内容嗅探.
package tabular

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Format 表格格式.
type Format int

const (
	// FormatCSV 逗号分隔文本.
	FormatCSV Format = iota + 1
	// FormatSpreadsheet XLSX 工作簿.
	FormatSpreadsheet
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatSpreadsheet:
		return "spreadsheet"
	default:
		return "unknown"
	}
}

// Value 单元格的值：nil、string、int64、float64 或 bool.
type Value = any

// Table 解析结果，每一行的长度都等于 len(Columns)，行顺序与源文件一致.
type Table struct {
	Columns []string
	Rows    [][]Value
}

// FormatFromFilename 根据文件名后缀（不区分大小写）选择格式.
func FormatFromFilename(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return FormatCSV
	}

	return FormatSpreadsheet
}

// Parse 按指定格式解析整个字节切片.
func Parse(format Format, data []byte) (*Table, error) {
	switch format {
	case FormatCSV:
		return parseCSV(data)
	default:
		return parseSpreadsheet(data)
	}
}

// ParseFile 根据文件名选择格式并解析.
func ParseFile(filename string, data []byte) (*Table, error) {
	return Parse(FormatFromFilename(filename), data)
}

// headerLabels 为空列名补上 "Unnamed: <index>"，并把重复列名改写为 label.1、label.2 ...
func headerLabels(raw []string) []string {
	labels := make([]string, len(raw))
	seen := make(map[string]int, len(raw))

	for i, h := range raw {
		if strings.TrimSpace(h) == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}

		if n, ok := seen[h]; ok {
			next := h
			for ok {
				n++
				next = h + "." + strconv.Itoa(n)
				_, ok = seen[next]
			}

			seen[h] = n
			seen[next] = 0
			h = next
		} else {
			seen[h] = 0
		}

		labels[i] = h
	}

	return labels
}
