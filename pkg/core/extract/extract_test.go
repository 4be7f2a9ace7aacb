package extract

import (
	"reflect"
	"testing"
	"time"

	"reportflow/pkg/core/config"
	"reportflow/pkg/core/grid"
)

func sheetFrom(rows [][]string) grid.Sheet {
	return grid.Normalize(rows)
}

func TestKeyValuesDateKeptInDeclaredFormat(t *testing.T) {
	sheet := sheetFrom([][]string{
		{"", "", ""},
		{"", "", "13/07/2025"},
	})
	specs := []config.KeyValueSpec{
		{Title: "report_date", Row: 1, Col: 2, Format: "%d/%m/%Y"},
	}

	got := KeyValues(sheet, specs)
	if got["report_date"].String() != "13/07/2025" {
		t.Fatalf("report_date = %q, want 13/07/2025", got["report_date"].String())
	}
}

func TestKeyValuesHebrewMonthToken(t *testing.T) {
	sheet := sheetFrom([][]string{
		{"יונ-2025"},
	})
	specs := []config.KeyValueSpec{
		{Title: "month", Row: 0, Col: 0, Format: "%Y-%m-01"},
	}

	got := KeyValues(sheet, specs)
	if got["month"].String() != "2025-06-01" {
		t.Fatalf("month = %q, want 2025-06-01", got["month"].String())
	}
}

func TestKeyValuesMissingCellIsEmpty(t *testing.T) {
	sheet := sheetFrom([][]string{{"x"}})
	specs := []config.KeyValueSpec{{Title: "absent", Row: 5, Col: 5}}

	got := KeyValues(sheet, specs)
	if !got["absent"].IsEmpty() {
		t.Fatalf("absent cell should extract as empty, got %q", got["absent"].String())
	}
}

func TestKeyValueSetMergeOverwrites(t *testing.T) {
	base := KeyValueSet{"a": grid.Text("1"), "b": grid.Text("2")}
	base.Merge(KeyValueSet{"b": grid.Text("3"), "c": grid.Text("4")})

	if base["b"].String() != "3" || base["c"].String() != "4" || base["a"].String() != "1" {
		t.Fatalf("unexpected merge result: %v", base)
	}
}

func TestFixedHeaderTableDropsAllBlankColumn(t *testing.T) {
	// Title at row 4, headers at row 5, four detected columns with the
	// fourth fully empty in the data rows.
	rows := make([][]string, 4)
	rows = append(rows,
		[]string{"Sales"},
		[]string{"Region", "Units", "Revenue", "Notes"},
		[]string{"North", "10", "100.5", ""},
		[]string{"South", "20", "200.5", ""},
	)
	sheet := sheetFrom(rows)

	table, ok := FixedHeaderTable(sheet, config.TableSpec{
		Title:   "Sales",
		Headers: []string{"region", "units", "revenue"},
	})
	if !ok {
		t.Fatal("table not found")
	}
	want := []string{"region", "units", "revenue"}
	if !reflect.DeepEqual(table.Columns, want) {
		t.Fatalf("columns = %v, want %v", table.Columns, want)
	}
	if table.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", table.NumRows())
	}
}

func TestFixedHeaderTableFillBlanksKeepsColumn(t *testing.T) {
	sheet := sheetFrom([][]string{
		{"Counts"},
		{"day", "total", "missed"},
		{"01/06/2025", "5", ""},
		{"02/06/2025", "7", ""},
	})

	table, ok := FixedHeaderTable(sheet, config.TableSpec{Title: "Counts", FillNA: true})
	if !ok {
		t.Fatal("table not found")
	}
	if len(table.Columns) != 3 {
		t.Fatalf("columns = %v, want 3 columns", table.Columns)
	}
	for i, row := range table.Rows {
		if n, ok := row[2].Number(); !ok || n != 0 {
			t.Fatalf("row %d missed = %v, want zero fill", i, row[2])
		}
	}
}

func TestFixedHeaderTableFillBlanksCoercesMixedColumn(t *testing.T) {
	sheet := sheetFrom([][]string{
		{"Counts"},
		{"day", "total", "note"},
		{"01/06/2025", "5", "ok"},
		{"02/06/2025", "n/a", ""},
		{"03/06/2025", "", "ok"},
	})

	table, ok := FixedHeaderTable(sheet, config.TableSpec{Title: "Counts", FillNA: true})
	if !ok {
		t.Fatal("table not found")
	}
	totals, _ := table.Column("total")
	if n, numeric := totals[2].Number(); !numeric || n != 0 {
		t.Fatalf("blank in a mixed column = %v, want zero", totals[2])
	}
	if totals[1].String() != "n/a" {
		t.Fatalf("non-numeric value = %q, want preserved", totals[1].String())
	}
	notes, _ := table.Column("note")
	if !notes[1].IsBlank() {
		t.Fatalf("blank in a text column = %v, want empty", notes[1])
	}
	days, _ := table.Column("day")
	if days[0].String() != "01/06/2025" {
		t.Fatalf("date column altered: %v", days)
	}
}

func TestFixedHeaderTableColCountFromEnd(t *testing.T) {
	sheet := sheetFrom([][]string{
		{"", "", "סיכום"},
		{"junk", "area", "fines", "amount", "paid"},
		{"x", "a", "1", "2", "3"},
		{"x", "b", "4", "5", "6"},
	})

	table, ok := FixedHeaderTable(sheet, config.TableSpec{
		Title:        "סיכום",
		ColCount:     4,
		StartFromEnd: true,
	})
	if !ok {
		t.Fatal("table not found")
	}
	want := []string{"area", "fines", "amount", "paid"}
	if !reflect.DeepEqual(table.Columns, want) {
		t.Fatalf("columns = %v, want %v", table.Columns, want)
	}
}

func TestFixedHeaderTableTitleAbsent(t *testing.T) {
	sheet := sheetFrom([][]string{{"nothing", "here"}})
	if _, ok := FixedHeaderTable(sheet, config.TableSpec{Title: "Sales"}); ok {
		t.Fatal("expected miss for absent title")
	}
}

func TestNoTitleTableSpanAndTerminator(t *testing.T) {
	sheet := sheetFrom([][]string{
		{"", "date", "count", "sum"},
		{"", "01/06/2025", "3", "30"},
		{"", "02/06/2025", "5", "50"},
		{"", "total", "", ""}, // fewer than two values ends the table
		{"", "stray", "1", "2"},
	})

	table, ok := NoTitleTable(sheet, NoTitleOptions{StartRow: 0})
	if !ok {
		t.Fatal("table not found")
	}
	if !reflect.DeepEqual(table.Columns, []string{"date", "count", "sum"}) {
		t.Fatalf("columns = %v", table.Columns)
	}
	if table.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", table.NumRows())
	}
}

func TestNoTitleTableMergedLeadingCell(t *testing.T) {
	// The first header cell is blank because of a merged region; the cell
	// one row below is populated, so the span still starts there.
	sheet := sheetFrom([][]string{
		{"", "", "count"},
		{"", "a", "3"},
		{"", "b", "5"},
	})

	table, ok := NoTitleTable(sheet, NoTitleOptions{StartRow: 0})
	if !ok {
		t.Fatal("table not found")
	}
	if len(table.Columns) != 2 {
		t.Fatalf("columns = %v, want a blank label plus count", table.Columns)
	}
	if table.Columns[1] != "count" {
		t.Fatalf("second column = %q, want count", table.Columns[1])
	}
}

func TestNoTitleTableExcludeAndFillNA(t *testing.T) {
	sheet := sheetFrom([][]string{
		{"name", "skip", "value"},
		{"a", "x", "1"},
		{"b", "y", ""},
	})

	table, ok := NoTitleTable(sheet, NoTitleOptions{
		StartRow: 0,
		Exclude:  []string{"skip"},
		FillNA:   true,
	})
	if !ok {
		t.Fatal("table not found")
	}
	if !reflect.DeepEqual(table.Columns, []string{"name", "value"}) {
		t.Fatalf("columns = %v", table.Columns)
	}
	if n, numeric := table.Rows[1][1].Number(); !numeric || n != 0 {
		t.Fatalf("blank value not zero filled: %v", table.Rows[1][1])
	}
}

func TestNoTitleTableSortsByLeadingDateColumn(t *testing.T) {
	sheet := sheetFrom([][]string{
		{"date", "count"},
		{"03/06/2025", "3"},
		{"01/06/2025", "1"},
		{"02/06/2025", "2"},
	})

	table, ok := NoTitleTable(sheet, NoTitleOptions{StartRow: 0})
	if !ok {
		t.Fatal("table not found")
	}
	var got []string
	for _, row := range table.Rows {
		got = append(got, row[1].String())
	}
	if !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Fatalf("counts after sort = %v, want ascending by date", got)
	}
	if table.Rows[0][0].String() != "2025-06-01" {
		t.Fatalf("sorted dates should be normalised, got %q", table.Rows[0][0].String())
	}
}

func TestFlattenColumnCount(t *testing.T) {
	table := grid.NewTable([]string{"area", "fines", "amount"})
	table.AppendRow([]grid.Value{grid.Text("north"), grid.Number(3), grid.Number(30)})
	table.AppendRow([]grid.Value{grid.Text("south"), grid.Number(5), grid.Number(50)})

	flat := Flatten(table, "month", time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC))
	if flat == nil {
		t.Fatal("flatten returned nil")
	}
	// 1 date column plus (columns-1) per source row.
	if want := 1 + 2*2; len(flat.Columns) != want {
		t.Fatalf("flattened columns = %d, want %d", len(flat.Columns), want)
	}
	if flat.NumRows() != 1 {
		t.Fatalf("flattened rows = %d, want 1", flat.NumRows())
	}
	if flat.Columns[0] != "month" || flat.Rows[0][0].String() != "2025-06" {
		t.Fatalf("date column = %q=%q", flat.Columns[0], flat.Rows[0][0].String())
	}
	idx := flat.ColumnIndex("fines_north")
	if idx < 0 {
		t.Fatalf("missing fines_north in %v", flat.Columns)
	}
	if n, _ := flat.Rows[0][idx].Number(); n != 3 {
		t.Fatalf("fines_north = %v, want 3", flat.Rows[0][idx])
	}
}

func TestFlattenDayGranularity(t *testing.T) {
	table := grid.NewTable([]string{"area", "fines"})
	table.AppendRow([]grid.Value{grid.Text("north"), grid.Number(3)})

	flat := Flatten(table, "day", time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC))
	if flat.Rows[0][0].String() != "13/06/2025" {
		t.Fatalf("day label = %q, want 13/06/2025", flat.Rows[0][0].String())
	}
}

func TestSearchAnchoredStart(t *testing.T) {
	sheet := sheetFrom([][]string{
		{"irrelevant"},
		{"", "פירוט קנסות 2025"},
		{"header row"},
	})

	if _, ok := SearchAnchoredStart(sheet, "פירוט קנסות 2024", false, 0); ok {
		t.Fatal("substring match should miss when years differ")
	}
	row, ok := SearchAnchoredStart(sheet, "פירוט קנסות 2024", true, 1)
	if !ok {
		t.Fatal("year-stripped search missed")
	}
	if row != 2 {
		t.Fatalf("row = %d, want 2", row)
	}
}

func TestConcatTablesAlignsMetricColumn(t *testing.T) {
	sheet := sheetFrom([][]string{
		{"metric"},
		{"speed"},
		{"distance"},
		{"idle"},
		{"", ""},
		{"פירוט"},
		{"driver", "value"},
		{"a", "1"},
		{"b", "2"},
	})

	table, ok := ConcatTables(sheet, config.ConcatSpec{
		MetricStartRow:     0,
		SkipMetricFirstRow: false,
		MetricColumnName:   "measure",
		SearchText:         "פירוט",
		RowOffset:          1,
	})
	if !ok {
		t.Fatal("concat failed")
	}
	if !reflect.DeepEqual(table.Columns, []string{"driver", "value", "measure"}) {
		t.Fatalf("columns = %v", table.Columns)
	}
	if table.NumRows() != 3 {
		t.Fatalf("rows = %d, want 3 (metric overflow appended)", table.NumRows())
	}
	if table.Rows[0][2].String() != "speed" || table.Rows[2][2].String() != "idle" {
		t.Fatalf("metric column misaligned: %v", table.Rows)
	}
	if !table.Rows[2][0].IsBlank() {
		t.Fatalf("overflow row should be blank outside the metric column")
	}
}

func TestMultiSheetConcatSuffixesCollisions(t *testing.T) {
	sheets := map[string]grid.Sheet{
		"first": sheetFrom([][]string{
			{"name", "total"},
			{"a", "1"},
			{"b", "2"},
		}),
		"second": sheetFrom([][]string{
			{"name", "total"},
			{"b", "20"},
			{"c", "30"},
		}),
	}

	table, ok := MultiSheetConcat(sheets, config.MultiConcatSpec{
		JoinColumn: "name",
		Sheets: []config.MultiConcatSheet{
			{SheetName: "first", StartRow: 0},
			{SheetName: "second", StartRow: 0},
			{SheetName: "missing", StartRow: 0},
		},
	})
	if !ok {
		t.Fatal("multi-sheet concat failed")
	}
	if !reflect.DeepEqual(table.Columns, []string{"name", "total", "total_2"}) {
		t.Fatalf("columns = %v", table.Columns)
	}
	if table.NumRows() != 3 {
		t.Fatalf("rows = %d, want 3 (outer join)", table.NumRows())
	}
	byName := map[string][]string{}
	for _, row := range table.Rows {
		byName[row[0].String()] = []string{row[1].String(), row[2].String()}
	}
	if byName["b"][0] != "2" || byName["b"][1] != "20" {
		t.Fatalf("joined row b = %v", byName["b"])
	}
	if byName["c"][0] != "" || byName["c"][1] != "30" {
		t.Fatalf("unmatched row c = %v", byName["c"])
	}
}
