package grid

import "fmt"

// Table is an ordered set of named columns over uniform rows. Every row has
// exactly len(Columns) values; AddColumn and DropColumn keep that invariant.
type Table struct {
	Columns []string
	Rows    [][]Value
}

// NewTable builds an empty table with the given column labels.
func NewTable(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

func (t *Table) NumRows() int { return len(t.Rows) }

// ColumnIndex returns the position of a column, or -1 when absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column's values.
func (t *Table) Column(name string) ([]Value, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// AppendRow adds a row, padding or truncating to the column count.
func (t *Table) AppendRow(row []Value) {
	fixed := make([]Value, len(t.Columns))
	for i := range fixed {
		if i < len(row) {
			fixed[i] = row[i]
		} else {
			fixed[i] = Empty()
		}
	}
	t.Rows = append(t.Rows, fixed)
}

// AddColumn appends a new column. The values slice must cover every row;
// missing tail entries become empty.
func (t *Table) AddColumn(name string, values []Value) {
	if idx := t.ColumnIndex(name); idx >= 0 {
		for i := range t.Rows {
			v := Empty()
			if i < len(values) {
				v = values[i]
			}
			t.Rows[i][idx] = v
		}
		return
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		v := Empty()
		if i < len(values) {
			v = values[i]
		}
		t.Rows[i] = append(t.Rows[i], v)
	}
}

// AddConstantColumn appends a column holding the same value in every row.
func (t *Table) AddConstantColumn(name string, v Value) {
	vals := make([]Value, len(t.Rows))
	for i := range vals {
		vals[i] = v
	}
	t.AddColumn(name, vals)
}

// DropColumn removes the named column. Returns false when absent.
func (t *Table) DropColumn(name string) bool {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return false
	}
	t.Columns = append(t.Columns[:idx], t.Columns[idx+1:]...)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i][:idx], t.Rows[i][idx+1:]...)
	}
	return true
}

// ColumnAllBlank reports whether every value in column idx is blank.
func (t *Table) ColumnAllBlank(idx int) bool {
	for _, row := range t.Rows {
		if !row[idx].IsBlank() {
			return false
		}
	}
	return true
}

// ColumnAllNumeric reports whether every non-blank value in column idx parses
// as a number.
func (t *Table) ColumnAllNumeric(idx int) bool {
	for _, row := range t.Rows {
		if row[idx].IsBlank() {
			continue
		}
		if _, ok := row[idx].Number(); !ok {
			return false
		}
	}
	return true
}

// Clone makes a deep copy of the table.
func (t *Table) Clone() *Table {
	out := NewTable(t.Columns)
	out.Rows = make([][]Value, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]Value(nil), row...)
	}
	return out
}

func (t *Table) String() string {
	return fmt.Sprintf("Table(%d cols, %d rows)", len(t.Columns), len(t.Rows))
}
