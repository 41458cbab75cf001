package table

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Table is an in-memory, column-ordered relation.
//
// Cell values are one of: nil, string, int64, float64, bool, time.Time.
// Every stage of the pipeline (loading, cleaning, joining, views, query
// results) passes data around as *Table.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// New creates an empty table with the given columns.
func New(name string, columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Name: name, Columns: cols}
}

// Len returns the number of rows. A nil table has zero rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether every named column exists.
func (t *Table) Has(names ...string) bool {
	for _, n := range names {
		if t.Index(n) < 0 {
			return false
		}
	}
	return true
}

// Append adds a row. Short rows are padded with nil.
func (t *Table) Append(row ...any) {
	if len(row) < len(t.Columns) {
		tmp := make([]any, len(t.Columns))
		copy(tmp, row)
		row = tmp
	}
	t.Rows = append(t.Rows, row)
}

// Value returns the cell at (row, column name), or nil if the column is absent.
func (t *Table) Value(row int, col string) any {
	i := t.Index(col)
	if i < 0 || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return nil
	}
	return t.Rows[row][i]
}

// Set assigns the cell at (row, column name). Unknown columns are ignored.
func (t *Table) Set(row int, col string, v any) {
	i := t.Index(col)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return
	}
	t.Rows[row][i] = v
}

// AddColumn appends a column filled by fn(row).
func (t *Table) AddColumn(name string, fn func(row int) any) {
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], fn(i))
	}
}

// Clone deep-copies the row slices. Cell values are immutable scalars.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := New(t.Name, t.Columns...)
	out.Rows = make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		cp := make([]any, len(r))
		copy(cp, r)
		out.Rows[i] = cp
	}
	return out
}

// Select projects the named columns that exist, in the given order.
func (t *Table) Select(name string, columns ...string) *Table {
	var idx []int
	var names []string
	for _, c := range columns {
		if i := t.Index(c); i >= 0 {
			idx = append(idx, i)
			names = append(names, c)
		}
	}
	out := New(name, names...)
	out.Rows = make([][]any, len(t.Rows))
	for r, row := range t.Rows {
		cp := make([]any, len(idx))
		for j, i := range idx {
			if i < len(row) {
				cp[j] = row[i]
			}
		}
		out.Rows[r] = cp
	}
	return out
}

// Records returns the rows as column-keyed maps.
func (t *Table) Records() []map[string]any {
	if t == nil {
		return nil
	}
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(row) {
				m[c] = jsonValue(row[i])
			}
		}
		out = append(out, m)
	}
	return out
}

type tableJSON struct {
	Name    string           `json:"name,omitempty"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [{col: value}]}.
func (t *Table) MarshalJSON() ([]byte, error) {
	cols := t.Columns
	if cols == nil {
		cols = []string{}
	}
	rows := t.Records()
	if rows == nil {
		rows = []map[string]any{}
	}
	return json.Marshal(tableJSON{Name: t.Name, Columns: cols, Rows: rows})
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format("2006-01-02")
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	default:
		return v
	}
}

// Format renders a single cell for display.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatFloat(x, 'f', 0, 64)
		}
		return strconv.FormatFloat(x, 'f', 2, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02")
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(v)
	}
}

// Markdown renders up to maxRows rows as a pipe table. maxRows <= 0 renders all rows.
func (t *Table) Markdown(maxRows int) string {
	if t == nil || len(t.Columns) == 0 {
		return "(no data)\n"
	}
	var b strings.Builder
	b.WriteString("| ")
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(safeName(c))
	}
	b.WriteString(" |\n| ")
	for i := range t.Columns {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString("---")
	}
	b.WriteString(" |\n")
	n := len(t.Rows)
	if maxRows > 0 && n > maxRows {
		n = maxRows
	}
	for _, row := range t.Rows[:n] {
		b.WriteString("| ")
		for i := range t.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			val := ""
			if i < len(row) {
				val = Format(row[i])
			}
			if len(val) > 80 {
				val = val[:77] + "..."
			}
			b.WriteString(safeVal(val))
		}
		b.WriteString(" |\n")
	}
	if n < len(t.Rows) {
		b.WriteString(fmt.Sprintf("(%d more rows)\n", len(t.Rows)-n))
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}
func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
