package tabular

import (
	"math"
	"strconv"
	"strings"
)

// naValues 视为空值的单元格文本.
var naValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

type columnKind int

const (
	kindEmpty columnKind = iota
	kindInt
	kindFloat
	kindBool
	kindString
)

func isNA(s string) bool {
	_, ok := naValues[strings.TrimSpace(s)]

	return ok
}

func parseInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)

	return n, err == nil
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	// 排除十六进制浮点与下划线写法
	if strings.ContainsAny(s, "xXpP_") {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}

	return f, true
}

func parseBool(s string) (bool, bool) {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, "true"):
		return true, true
	case strings.EqualFold(s, "false"):
		return false, true
	default:
		return false, false
	}
}

// kindOf 单个非空单元格能表示的最窄类型.
func kindOf(s string) columnKind {
	if _, ok := parseInt(s); ok {
		return kindInt
	}

	if _, ok := parseFloat(s); ok {
		return kindFloat
	}

	if _, ok := parseBool(s); ok {
		return kindBool
	}

	return kindString
}

// widen 合并两个类型：int 与 float 合并为 float，其他不一致的组合退化为 string.
func widen(a, b columnKind) columnKind {
	switch {
	case a == kindEmpty:
		return b
	case b == kindEmpty || a == b:
		return a
	case (a == kindInt && b == kindFloat) || (a == kindFloat && b == kindInt):
		return kindFloat
	default:
		return kindString
	}
}

func convert(s string, kind columnKind) Value {
	if isNA(s) {
		return nil
	}

	switch kind {
	case kindInt:
		n, _ := parseInt(s)

		return n
	case kindFloat:
		f, _ := parseFloat(s)

		return f
	case kindBool:
		b, _ := parseBool(s)

		return b
	default:
		return s
	}
}

// buildRows 按列推断类型并把文本单元格转换为 Value，短行以 nil 补齐到 width.
func buildRows(width int, raw [][]string) [][]Value {
	kinds := make([]columnKind, width)

	for _, rec := range raw {
		for i := 0; i < width && i < len(rec); i++ {
			if isNA(rec[i]) {
				continue
			}

			kinds[i] = widen(kinds[i], kindOf(rec[i]))
		}
	}

	rows := make([][]Value, len(raw))
	for r, rec := range raw {
		row := make([]Value, width)
		for i := 0; i < width && i < len(rec); i++ {
			row[i] = convert(rec[i], kinds[i])
		}

		rows[r] = row
	}

	return rows
}
