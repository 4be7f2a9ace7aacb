package extract

import (
	"fmt"
	"log"

	"reportflow/pkg/core/config"
	"reportflow/pkg/core/grid"
)

// ConcatTables joins a single-column metric region with a text-search-anchored
// table from the same sheet. The metric values become the final column,
// aligned row-for-row; when the metric region runs longer, extra rows are
// appended with blanks everywhere but the metric column.
func ConcatTables(sheet grid.Sheet, spec config.ConcatSpec) (*grid.Table, bool) {
	metricTable, ok := NoTitleTable(sheet, NoTitleOptions{StartRow: spec.MetricStartRow})
	if !ok {
		log.Printf("[Extract] WARNING: metric region at row %d not found", spec.MetricStartRow)
		return nil, false
	}
	metrics := make([]grid.Value, 0, metricTable.NumRows())
	for i, row := range metricTable.Rows {
		if i == 0 && spec.SkipMetricFirstRow {
			continue
		}
		metrics = append(metrics, row[0])
	}

	start, ok := SearchAnchoredStart(sheet, spec.SearchText, spec.StripYears, spec.RowOffset)
	if !ok {
		log.Printf("[Extract] WARNING: search text %q not found", spec.SearchText)
		return nil, false
	}
	base, ok := NoTitleTable(sheet, NoTitleOptions{StartRow: start})
	if !ok {
		log.Printf("[Extract] WARNING: no table at searched row %d", start)
		return nil, false
	}

	name := spec.MetricColumnName
	if name == "" {
		name = "metric"
	}
	column := make([]grid.Value, base.NumRows())
	for i := range column {
		if i < len(metrics) {
			column[i] = metrics[i]
		} else {
			column[i] = grid.Empty()
		}
	}
	base.AddColumn(name, column)

	baseRows := base.NumRows()
	for i := baseRows; i < len(metrics); i++ {
		row := make([]grid.Value, len(base.Columns))
		for j := range row {
			row[j] = grid.Empty()
		}
		row[len(row)-1] = metrics[i]
		base.AppendRow(row)
	}
	return base, true
}

// MultiSheetConcat extracts a headerless table from each declared sheet in
// order and outer-joins them cumulatively on the join column. Column names
// already present in the accumulated table are suffixed with the source's
// sequence number before joining.
func MultiSheetConcat(sheets map[string]grid.Sheet, spec config.MultiConcatSpec) (*grid.Table, bool) {
	if spec.JoinColumn == "" || len(spec.Sheets) == 0 {
		log.Printf("[Extract] WARNING: incomplete multi-sheet concat declaration")
		return nil, false
	}

	var combined *grid.Table
	for seq, src := range spec.Sheets {
		sheet, ok := sheets[src.SheetName]
		if !ok {
			log.Printf("[Extract] WARNING: sheet %q not found, skipping", src.SheetName)
			continue
		}
		table, ok := NoTitleTable(sheet, NoTitleOptions{StartRow: src.StartRow})
		if !ok {
			log.Printf("[Extract] WARNING: no table at row %d of sheet %q", src.StartRow, src.SheetName)
			continue
		}
		if table.ColumnIndex(spec.JoinColumn) < 0 {
			log.Printf("[Extract] WARNING: sheet %q table lacks join column %q", src.SheetName, spec.JoinColumn)
			continue
		}

		if combined == nil {
			combined = table
			continue
		}
		suffixCollisions(table, combined, spec.JoinColumn, seq+1)
		combined = outerJoin(combined, table, spec.JoinColumn)
	}
	if combined == nil {
		return nil, false
	}
	return combined, true
}

func suffixCollisions(table, against *grid.Table, joinColumn string, seq int) {
	for i, name := range table.Columns {
		if name == joinColumn {
			continue
		}
		if against.ColumnIndex(name) >= 0 {
			table.Columns[i] = fmt.Sprintf("%s_%d", name, seq)
		}
	}
}

// outerJoin combines two tables on the join column: left rows keep their
// order and gain the right table's columns; right rows with unmatched keys
// are appended with blanks in the left-only columns. Duplicate keys on the
// right bind to their first occurrence.
func outerJoin(left, right *grid.Table, joinColumn string) *grid.Table {
	leftKey := left.ColumnIndex(joinColumn)
	rightKey := right.ColumnIndex(joinColumn)

	var rightCols []int
	var columns []string
	columns = append(columns, left.Columns...)
	for i, name := range right.Columns {
		if i == rightKey {
			continue
		}
		rightCols = append(rightCols, i)
		columns = append(columns, name)
	}

	byKey := make(map[string]int, right.NumRows())
	for i, row := range right.Rows {
		k := row[rightKey].String()
		if _, seen := byKey[k]; !seen {
			byKey[k] = i
		}
	}

	joined := grid.NewTable(columns)
	matched := make(map[int]bool, right.NumRows())
	for _, lrow := range left.Rows {
		row := make([]grid.Value, 0, len(columns))
		row = append(row, lrow...)
		if ri, ok := byKey[lrow[leftKey].String()]; ok {
			matched[ri] = true
			for _, c := range rightCols {
				row = append(row, right.Rows[ri][c])
			}
		} else {
			for range rightCols {
				row = append(row, grid.Empty())
			}
		}
		joined.AppendRow(row)
	}

	for ri, rrow := range right.Rows {
		if matched[ri] {
			continue
		}
		row := make([]grid.Value, len(columns))
		for i := range row {
			row[i] = grid.Empty()
		}
		row[leftKey] = rrow[rightKey]
		for n, c := range rightCols {
			row[len(left.Columns)+n] = rrow[c]
		}
		joined.AppendRow(row)
	}
	return joined
}
