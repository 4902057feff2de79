package tabular

import "strings"

// Row 规范化后的一行，键为规范化后的列名.
type Row = map[string]Value

// Normalized 规范化结果，Columns 保持首次出现的顺序.
type Normalized struct {
	Columns []string
	Rows    []Row
}

// NormalizeOptions 控制规范化行为.
type NormalizeOptions struct {
	// Strict 为 true 时列名冲突返回 *CollisionError，否则后出现的列覆盖先出现的列.
	Strict bool
}

// NormalizeLabel 去掉首尾空白，把内部连续空白替换为单个下划线并转为小写.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), "_"))
}

// Normalize 丢弃所有单元格都为空的行，并改写列名.
func Normalize(t *Table, opts NormalizeOptions) (*Normalized, error) {
	keys := make([]string, len(t.Columns))
	origin := make(map[string][]string, len(t.Columns))
	columns := make([]string, 0, len(t.Columns))

	for i, label := range t.Columns {
		key := NormalizeLabel(label)
		keys[i] = key

		if _, ok := origin[key]; !ok {
			columns = append(columns, key)
		}

		origin[key] = append(origin[key], label)
	}

	if opts.Strict {
		for _, key := range columns {
			if labels := origin[key]; len(labels) > 1 {
				return nil, &CollisionError{Key: key, Labels: labels}
			}
		}
	}

	rows := make([]Row, 0, len(t.Rows))

	for _, cells := range t.Rows {
		if emptyRow(cells) {
			continue
		}

		row := make(Row, len(columns))
		for i, key := range keys {
			var v Value
			if i < len(cells) {
				v = cells[i]
			}

			row[key] = v
		}

		rows = append(rows, row)
	}

	return &Normalized{Columns: columns, Rows: rows}, nil
}

func emptyRow(cells []Value) bool {
	for _, v := range cells {
		switch x := v.(type) {
		case nil:
		case string:
			if x != "" {
				return false
			}
		default:
			return false
		}
	}

	return true
}
