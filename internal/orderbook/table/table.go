package table

import (
	"fmt"
)

// Table 内存表：有序列名 + 按位置标识的行
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New 创建空表。重复列名会 panic，读取器负责去重。
func New(columns ...string) *Table {
	t := &Table{
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		if _, dup := t.index[c]; dup {
			panic(fmt.Sprintf("table: duplicate column %q", c))
		}
		t.index[c] = len(t.columns)
		t.columns = append(t.columns, c)
	}
	return t
}

// Len 行数
func (t *Table) Len() int { return len(t.rows) }

// Columns 列名副本
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn 是否存在列
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AppendRow 追加一行，值个数必须与列数一致
func (t *Table) AppendRow(values ...Value) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("table: row has %d values, want %d", len(values), len(t.columns))
	}
	row := make([]Value, len(values))
	copy(row, values)
	t.rows = append(t.rows, row)
	return nil
}

// Value 读取单元格；列不存在时返回 Null
func (t *Table) Value(row int, column string) Value {
	i, ok := t.index[column]
	if !ok {
		return Null()
	}
	return t.rows[row][i]
}

// Row 返回第 row 行的副本
func (t *Table) Row(row int) []Value {
	out := make([]Value, len(t.columns))
	copy(out, t.rows[row])
	return out
}

// Set 写入单元格，列不存在时追加到末尾（其余行为 Null）
func (t *Table) Set(row int, column string, v Value) {
	i := t.ensureColumn(column)
	t.rows[row][i] = v
}

// Apply sets column to fn(row) for every row. An existing column keeps its
// position; a new one is appended.
func (t *Table) Apply(column string, fn func(row int) Value) {
	vals := make([]Value, len(t.rows))
	for r := range t.rows {
		vals[r] = fn(r)
	}
	i := t.ensureColumn(column)
	for r := range t.rows {
		t.rows[r][i] = vals[r]
	}
}

func (t *Table) ensureColumn(column string) int {
	if i, ok := t.index[column]; ok {
		return i
	}
	i := len(t.columns)
	t.columns = append(t.columns, column)
	t.index[column] = i
	for r := range t.rows {
		t.rows[r] = append(t.rows[r], Null())
	}
	return i
}

// Filter 返回满足 keep 的行组成的新表
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := t.emptyLike()
	for r, row := range t.rows {
		if keep(r) {
			cp := make([]Value, len(row))
			copy(cp, row)
			out.rows = append(out.rows, cp)
		}
	}
	return out
}

// DropColumns 返回去掉匹配列后的新表
func (t *Table) DropColumns(match func(name string) bool) *Table {
	var keepIdx []int
	var keepCols []string
	for i, c := range t.columns {
		if !match(c) {
			keepIdx = append(keepIdx, i)
			keepCols = append(keepCols, c)
		}
	}
	out := New(keepCols...)
	out.rows = make([][]Value, 0, len(t.rows))
	for _, row := range t.rows {
		nr := make([]Value, len(keepIdx))
		for j, i := range keepIdx {
			nr[j] = row[i]
		}
		out.rows = append(out.rows, nr)
	}
	return out
}

// Clone 深拷贝
func (t *Table) Clone() *Table {
	return t.Filter(func(int) bool { return true })
}

func (t *Table) emptyLike() *Table {
	return New(t.columns...)
}

// Lookup builds a map from the text form of key to the value column.
// Later rows overwrite earlier ones, so the last occurrence of a key wins.
func (t *Table) Lookup(key, value string) (map[string]Value, error) {
	ki, ok := t.index[key]
	if !ok {
		return nil, fmt.Errorf("table: no column %q", key)
	}
	vi, ok := t.index[value]
	if !ok {
		return nil, fmt.Errorf("table: no column %q", value)
	}
	m := make(map[string]Value, len(t.rows))
	for _, row := range t.rows {
		m[row[ki].Text()] = row[vi]
	}
	return m, nil
}

// Records 按行导出为 Go 值，供渲染使用
func (t *Table) Records(limit int) [][]interface{} {
	n := len(t.rows)
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([][]interface{}, n)
	for r := 0; r < n; r++ {
		rec := make([]interface{}, len(t.columns))
		for i, v := range t.rows[r] {
			rec[i] = v.Interface()
		}
		out[r] = rec
	}
	return out
}

// Rows 返回前 limit 行（limit < 0 表示全部）的副本
func (t *Table) Rows(limit int) [][]Value {
	n := len(t.rows)
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([][]Value, n)
	for r := 0; r < n; r++ {
		out[r] = t.Row(r)
	}
	return out
}
