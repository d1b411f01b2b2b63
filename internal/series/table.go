// Package series provides a small time-indexed table of float columns and the
// batched range fetcher used to pull long histories from upstream APIs that
// limit the span of a single query.
package series

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Row is one timestamp of a Table. Values are in Table.Columns order and a
// missing cell is NaN.
type Row struct {
	Time   time.Time
	Values []float64
}

// Table is a set of named float columns indexed by time.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows. A nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Append adds a row. It fails if the number of values does not match the
// number of columns.
func (t *Table) Append(ts time.Time, values ...float64) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Columns))
	}
	t.Rows = append(t.Rows, Row{Time: ts, Values: append([]float64(nil), values...)})
	return nil
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[idx]
	}
	return out, true
}

// Value returns a single cell. ok is false for an unknown column, an out of
// range row or a missing (NaN) cell.
func (t *Table) Value(row int, column string) (v float64, ok bool) {
	idx := t.ColumnIndex(column)
	if idx < 0 || row < 0 || row >= len(t.Rows) {
		return 0, false
	}
	v = t.Rows[row].Values[idx]
	return v, !math.IsNaN(v)
}

// Index returns the row timestamps.
func (t *Table) Index() []time.Time {
	out := make([]time.Time, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Time
	}
	return out
}

// Concat stacks tables with identical columns in argument order. Nil tables
// are skipped. It returns nil when every argument is nil.
func Concat(tables ...*Table) (*Table, error) {
	var out *Table
	for _, t := range tables {
		if t == nil {
			continue
		}
		if out == nil {
			out = NewTable(t.Columns...)
		} else if !sameColumns(out.Columns, t.Columns) {
			return nil, fmt.Errorf("column mismatch: %v vs %v", out.Columns, t.Columns)
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Point is a single observation of a Series.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is a named list of observations.
type Series struct {
	Name   string
	Points []Point
}

// Join outer-joins series into a table with the given columns, ordered by
// ascending time. Series whose name is not a column are ignored. Several
// series may share a name; a later one overwrites an earlier one at equal
// timestamps. A name listed more than once in columns fills each of its
// columns. Cells without an observation are NaN.
func Join(columns []string, parts ...Series) *Table {
	out := NewTable(columns...)

	colIndex := make(map[string][]int, len(columns))
	for i, c := range columns {
		colIndex[c] = append(colIndex[c], i)
	}

	rowIndex := make(map[int64]int)
	for _, s := range parts {
		positions, ok := colIndex[s.Name]
		if !ok {
			continue
		}
		for _, p := range s.Points {
			key := p.Time.UnixNano()
			r, seen := rowIndex[key]
			if !seen {
				values := make([]float64, len(columns))
				for i := range values {
					values[i] = math.NaN()
				}
				r = len(out.Rows)
				rowIndex[key] = r
				out.Rows = append(out.Rows, Row{Time: p.Time, Values: values})
			}
			for _, idx := range positions {
				out.Rows[r].Values[idx] = p.Value
			}
		}
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		return out.Rows[i].Time.Before(out.Rows[j].Time)
	})
	return out
}
