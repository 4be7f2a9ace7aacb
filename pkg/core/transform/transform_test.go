package transform

import (
	"reflect"
	"testing"
	"time"

	"reportflow/pkg/core/config"
	"reportflow/pkg/core/grid"
)

func numberTable(columns []string, rows ...[]float64) *grid.Table {
	t := grid.NewTable(columns)
	for _, row := range rows {
		values := make([]grid.Value, len(row))
		for i, n := range row {
			values[i] = grid.Number(n)
		}
		t.AppendRow(values)
	}
	return t
}

func numbersOf(t *testing.T, table *grid.Table, column string) []float64 {
	t.Helper()
	values, ok := table.Column(column)
	if !ok {
		t.Fatalf("column %q missing from %v", column, table.Columns)
	}
	out := make([]float64, len(values))
	for i, v := range values {
		n, numeric := v.Number()
		if !numeric {
			t.Fatalf("%s[%d] = %v, not numeric", column, i, v)
		}
		out[i] = n
	}
	return out
}

func TestCustomFormulaOverColumns(t *testing.T) {
	table := numberTable([]string{"a", "b"}, []float64{1, 3}, []float64{2, 4})

	ApplyDerived(table, []config.DerivedColumnSpec{
		{Name: "sum", Type: "custom_formula", Formula: "a + b"},
	}, nil, time.Now())

	if got := numbersOf(t, table, "sum"); !reflect.DeepEqual(got, []float64{4, 6}) {
		t.Fatalf("sum = %v, want [4 6]", got)
	}
}

func TestCustomFormulaLongestNameWins(t *testing.T) {
	table := numberTable([]string{"total", "total_count"}, []float64{10, 2}, []float64{20, 4})

	ApplyDerived(table, []config.DerivedColumnSpec{
		{Name: "ratio", Type: "custom_formula", Formula: "(total / total_count)"},
	}, nil, time.Now())

	if got := numbersOf(t, table, "ratio"); !reflect.DeepEqual(got, []float64{5, 5}) {
		t.Fatalf("ratio = %v, want [5 5]", got)
	}
}

func TestCustomFormulaQuotedLiteral(t *testing.T) {
	table := numberTable([]string{"x"}, []float64{1}, []float64{2})

	ApplyDerived(table, []config.DerivedColumnSpec{
		{Name: "day_type", Type: "custom_formula", Formula: "'חול'"},
	}, nil, time.Now())

	values, ok := table.Column("day_type")
	if !ok {
		t.Fatal("day_type missing")
	}
	for _, v := range values {
		if v.String() != "חול" {
			t.Fatalf("day_type = %q, want literal", v.String())
		}
	}
}

func TestCustomFormulaKeyValueConstant(t *testing.T) {
	table := numberTable([]string{"x"}, []float64{1}, []float64{2})
	keyValues := map[string]grid.Value{"fleet_total": grid.Number(42)}

	ApplyDerived(table, []config.DerivedColumnSpec{
		{Name: "fleet", Type: "custom_formula", Formula: "fleet_total"},
	}, keyValues, time.Now())

	if got := numbersOf(t, table, "fleet"); !reflect.DeepEqual(got, []float64{42, 42}) {
		t.Fatalf("fleet = %v", got)
	}
}

func TestCustomFormulaUnknownColumnFailsOnlyThatColumn(t *testing.T) {
	table := numberTable([]string{"a"}, []float64{1})

	ApplyDerived(table, []config.DerivedColumnSpec{
		{Name: "broken", Type: "custom_formula", Formula: "a + missing"},
		{Name: "doubled", Type: "custom_formula", Formula: "a * 2"},
	}, nil, time.Now())

	if _, ok := table.Column("broken"); ok {
		t.Fatal("broken column should be omitted")
	}
	if got := numbersOf(t, table, "doubled"); got[0] != 2 {
		t.Fatalf("doubled = %v, want [2]", got)
	}
}

func TestCumulativeAggregates(t *testing.T) {
	table := numberTable([]string{"v"}, []float64{4}, []float64{2}, []float64{6})

	ApplyDerived(table, []config.DerivedColumnSpec{
		{Name: "avg", Type: "cumulative_average", SourceColumn: "v"},
		{Name: "sum", Type: "cumulative_sum", SourceColumn: "v"},
		{Name: "max", Type: "cumulative_max", SourceColumn: "v"},
		{Name: "min", Type: "cumulative_min", SourceColumn: "v"},
	}, nil, time.Now())

	if got := numbersOf(t, table, "avg"); !reflect.DeepEqual(got, []float64{4, 3, 4}) {
		t.Fatalf("avg = %v", got)
	}
	if got := numbersOf(t, table, "sum"); !reflect.DeepEqual(got, []float64{4, 6, 12}) {
		t.Fatalf("sum = %v", got)
	}
	if got := numbersOf(t, table, "max"); !reflect.DeepEqual(got, []float64{4, 4, 6}) {
		t.Fatalf("max = %v", got)
	}
	if got := numbersOf(t, table, "min"); !reflect.DeepEqual(got, []float64{4, 2, 2}) {
		t.Fatalf("min = %v", got)
	}
}

func TestDerivedDateColumnOrdersAccumulation(t *testing.T) {
	table := grid.NewTable([]string{"date", "amount"})
	table.AppendRow([]grid.Value{grid.Text("03/06/2025"), grid.Number(3)})
	table.AppendRow([]grid.Value{grid.Text("01/06/2025"), grid.Number(1)})
	table.AppendRow([]grid.Value{grid.Text("02/06/2025"), grid.Number(2)})

	ApplyDerived(table, []config.DerivedColumnSpec{
		{Name: "running", Type: "cumulative_sum", SourceColumn: "amount", DateColumn: "date"},
	}, nil, time.Now())

	if got := numbersOf(t, table, "running"); !reflect.DeepEqual(got, []float64{1, 3, 6}) {
		t.Fatalf("running = %v, want accumulation in date order", got)
	}
	dates, _ := table.Column("date")
	if dates[0].String() != "01/06/2025" || dates[2].String() != "03/06/2025" {
		t.Fatalf("rows not reordered by date: %v", dates)
	}
}

func TestDerivedWithoutDateColumnKeepsRowOrder(t *testing.T) {
	table := grid.NewTable([]string{"date", "amount"})
	table.AppendRow([]grid.Value{grid.Text("03/06/2025"), grid.Number(3)})
	table.AppendRow([]grid.Value{grid.Text("01/06/2025"), grid.Number(1)})

	ApplyDerived(table, []config.DerivedColumnSpec{
		{Name: "running", Type: "cumulative_sum", SourceColumn: "amount"},
	}, nil, time.Now())

	if got := numbersOf(t, table, "running"); !reflect.DeepEqual(got, []float64{3, 4}) {
		t.Fatalf("running = %v, want arrival-order accumulation", got)
	}
}

func TestCumulativeCountWithCondition(t *testing.T) {
	table := numberTable([]string{"v"}, []float64{5}, []float64{0}, []float64{7})

	ApplyDerived(table, []config.DerivedColumnSpec{
		{Name: "positives", Type: "cumulative_count", SourceColumn: "v", Condition: "> 0"},
	}, nil, time.Now())

	if got := numbersOf(t, table, "positives"); !reflect.DeepEqual(got, []float64{1, 1, 2}) {
		t.Fatalf("positives = %v", got)
	}
}

func TestRollingAggregatesNullUntilFilled(t *testing.T) {
	table := numberTable([]string{"v"}, []float64{1}, []float64{2}, []float64{3}, []float64{4})

	ApplyDerived(table, []config.DerivedColumnSpec{
		{Name: "roll", Type: "rolling_sum", SourceColumn: "v", Window: 3},
	}, nil, time.Now())

	values, _ := table.Column("roll")
	if !values[0].IsEmpty() || !values[1].IsEmpty() {
		t.Fatalf("rows before the window fills should be null: %v", values)
	}
	if n, _ := values[2].Number(); n != 6 {
		t.Fatalf("roll[2] = %v, want 6", values[2])
	}
	if n, _ := values[3].Number(); n != 9 {
		t.Fatalf("roll[3] = %v, want 9", values[3])
	}
}

func TestPercentColumns(t *testing.T) {
	table := numberTable([]string{"v"}, []float64{25}, []float64{75})

	ApplyDerived(table, []config.DerivedColumnSpec{
		{Name: "share", Type: "percent_of_total", SourceColumn: "v"},
		{Name: "delta", Type: "percent_change", SourceColumn: "v"},
	}, nil, time.Now())

	if got := numbersOf(t, table, "share"); !reflect.DeepEqual(got, []float64{25, 75}) {
		t.Fatalf("share = %v", got)
	}
	deltas, _ := table.Column("delta")
	if !deltas[0].IsEmpty() {
		t.Fatalf("first percent_change should be null, got %v", deltas[0])
	}
	if n, _ := deltas[1].Number(); n != 200 {
		t.Fatalf("delta[1] = %v, want 200", deltas[1])
	}
}

func TestCurrentDateStamp(t *testing.T) {
	table := numberTable([]string{"v"}, []float64{1}, []float64{2})
	now := time.Date(2025, 7, 13, 10, 0, 0, 0, time.UTC)

	ApplyDerived(table, []config.DerivedColumnSpec{
		{Name: "last_updated", Type: "current_date", Format: "%d/%m/%Y"},
	}, nil, now)

	values, _ := table.Column("last_updated")
	for _, v := range values {
		if v.String() != "13/07/2025" {
			t.Fatalf("last_updated = %q", v.String())
		}
	}
}

func TestHebrewMonthConversion(t *testing.T) {
	table := grid.NewTable([]string{"month"})
	table.AppendRow([]grid.Value{grid.Text("יונ")})
	table.AppendRow([]grid.Value{grid.Text("not a month")})

	ApplyDerived(table, []config.DerivedColumnSpec{
		{Name: "month_name", Type: "hebrew_month_conversion", SourceColumn: "month"},
	}, nil, time.Now())

	values, _ := table.Column("month_name")
	if values[0].String() != "יוני" {
		t.Fatalf("month_name[0] = %q, want full month name", values[0].String())
	}
	if values[1].String() != "not a month" {
		t.Fatalf("unrecognised tokens should pass through, got %q", values[1].String())
	}
}

func TestInjectKeyValuesPlacements(t *testing.T) {
	table := numberTable([]string{"v"}, []float64{1}, []float64{2}, []float64{3})
	keyValues := map[string]grid.Value{
		"every": grid.Text("E"),
		"head":  grid.Text("H"),
		"tail":  grid.Text("T"),
	}

	InjectKeyValues(table, []config.KeyValueSpec{
		{Title: "every", AddToTable: true, Placement: PlacementAllRows},
		{Title: "head", AddToTable: true, Placement: PlacementFirstRow},
		{Title: "tail", AddToTable: true}, // defaults to last_row
		{Title: "ignored", AddToTable: false},
	}, keyValues)

	every, _ := table.Column("every")
	for _, v := range every {
		if v.String() != "E" {
			t.Fatalf("all_rows column = %v", every)
		}
	}
	head, _ := table.Column("head")
	if head[0].String() != "H" || !head[1].IsEmpty() || !head[2].IsEmpty() {
		t.Fatalf("first_row column = %v", head)
	}
	tail, _ := table.Column("tail")
	if !tail[0].IsEmpty() || !tail[1].IsEmpty() || tail[2].String() != "T" {
		t.Fatalf("last_row column = %v", tail)
	}
	if _, ok := table.Column("ignored"); ok {
		t.Fatal("add_to_table=false key should not be injected")
	}
}

func TestApplyOrderingForConcatenatedTables(t *testing.T) {
	// The extracted column is named by position; the formula references the
	// declared header, so renaming must run first for concatenated tables.
	table := numberTable([]string{"raw"}, []float64{3}, []float64{5})

	Apply(table, Options{
		Headers:      []string{"count"},
		Derived:      []config.DerivedColumnSpec{{Name: "double", Type: "custom_formula", Formula: "count * 2"}},
		Concatenated: true,
	}, nil, time.Now())

	if got := numbersOf(t, table, "double"); !reflect.DeepEqual(got, []float64{6, 10}) {
		t.Fatalf("double = %v", got)
	}

	// The ordinary path derives first: the same declaration must fail
	// because "count" does not exist before the rename.
	plain := numberTable([]string{"raw"}, []float64{3})
	Apply(plain, Options{
		Headers: []string{"count"},
		Derived: []config.DerivedColumnSpec{{Name: "double", Type: "custom_formula", Formula: "count * 2"}},
	}, nil, time.Now())
	if _, ok := plain.Column("double"); ok {
		t.Fatal("ordinary path should not see post-rename names")
	}
}

func TestApplyRenamePadsSurplusHeaders(t *testing.T) {
	table := numberTable([]string{"a"}, []float64{1})

	Apply(table, Options{Headers: []string{"x", "y", "z"}}, nil, time.Now())

	if !reflect.DeepEqual(table.Columns, []string{"x", "y", "z"}) {
		t.Fatalf("columns = %v", table.Columns)
	}
	if !table.Rows[0][1].IsEmpty() || !table.Rows[0][2].IsEmpty() {
		t.Fatalf("padded columns should be blank: %v", table.Rows[0])
	}
}

func TestApplyStampsDataDate(t *testing.T) {
	table := numberTable([]string{"a"}, []float64{1})
	keyValues := map[string]grid.Value{ReportDateKey: grid.Text("13/07/2025")}

	Apply(table, Options{AddDataDate: true}, keyValues, time.Now())

	values, ok := table.Column("date")
	if !ok {
		t.Fatal("date column missing")
	}
	if values[0].String() != "2025-07-13" {
		t.Fatalf("date = %q, want ISO form", values[0].String())
	}
}
