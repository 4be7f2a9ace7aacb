package extract

import (
	"log"

	"reportflow/pkg/core/config"
	"reportflow/pkg/core/grid"
)

// Data rows end at the first row with fewer than this many non-empty cells in
// the selected columns.
const minDataCells = 2

// headerOffset is the distance from a title row to its header row.
const headerOffset = 1

// FixedHeaderTable locates a table by its declared title and extracts it. The
// header row sits one row below the title match. Returns (nil, false) when the
// title is absent or the table has no data rows.
func FixedHeaderTable(sheet grid.Sheet, spec config.TableSpec) (*grid.Table, bool) {
	for i := 0; i < sheet.NumRows(); i++ {
		titleCol := -1
		for c := range sheet.Row(i) {
			if sheet.At(i, c) == spec.Title {
				titleCol = c
				break
			}
		}
		if titleCol < 0 {
			continue
		}

		headerIdx := i + headerOffset
		cols := selectColumns(sheet, headerIdx, titleCol, spec)
		if len(cols) == 0 {
			return nil, false
		}

		table := assembleRows(sheet, headerIdx, cols)
		if table == nil {
			return nil, false
		}

		applyFixedHeaders(table, spec.Headers, spec.FillNA)

		if spec.FillNA {
			fillBlanks(table)
		} else {
			dropAllBlankColumns(table)
		}
		return table, true
	}
	return nil, false
}

// selectColumns picks the column span for a fixed-header table: an explicit
// count from the title column (or the last N non-empty header columns when the
// table's position varies), otherwise every non-empty header cell.
func selectColumns(sheet grid.Sheet, headerIdx, titleCol int, spec config.TableSpec) []int {
	if spec.ColCount > 0 {
		start := titleCol
		if spec.StartFromEnd {
			total := 0
			for c := range sheet.Row(headerIdx) {
				if sheet.At(headerIdx, c) != "" {
					total++
				}
			}
			end := start + total
			start = end - spec.ColCount
			log.Printf("[Extract] taking %d columns from end: %d-%d", spec.ColCount, start, end-1)
			return columnRange(start, end)
		}
		log.Printf("[Extract] taking %d columns from start: %d-%d", spec.ColCount, start, start+spec.ColCount-1)
		return columnRange(start, start+spec.ColCount)
	}

	var cols []int
	for c := range sheet.Row(headerIdx) {
		if sheet.At(headerIdx, c) != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

func columnRange(start, end int) []int {
	if start < 0 {
		start = 0
	}
	cols := make([]int, 0, end-start)
	for c := start; c < end; c++ {
		cols = append(cols, c)
	}
	return cols
}

// assembleRows reads contiguous data rows below the header until the
// terminator condition. Returns nil when no data rows exist.
func assembleRows(sheet grid.Sheet, headerIdx int, cols []int) *grid.Table {
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = sheet.At(headerIdx, c)
	}

	table := grid.NewTable(headers)
	for j := headerIdx + 1; j < sheet.NumRows(); j++ {
		if sheet.NonEmptyInRow(j, cols) < minDataCells {
			break
		}
		row := make([]grid.Value, len(cols))
		for i, c := range cols {
			row[i] = grid.Parse(sheet.At(j, c))
		}
		table.AppendRow(row)
	}
	if table.NumRows() == 0 {
		return nil
	}
	return table
}

// applyFixedHeaders relabels columns with the declared headers. Surplus
// headers become new columns padded with zero (fill-blanks) or empty values;
// surplus columns keep their spreadsheet labels.
func applyFixedHeaders(table *grid.Table, headers []string, fillNA bool) {
	if len(headers) == 0 {
		return
	}
	n := len(table.Columns)
	for i := 0; i < n && i < len(headers); i++ {
		table.Columns[i] = headers[i]
	}
	if len(headers) > n {
		pad := grid.Empty()
		if fillNA {
			pad = grid.Number(0)
		}
		for _, extra := range headers[n:] {
			table.AddConstantColumn(extra, pad)
			log.Printf("[Extract] added missing column %q (%d rows)", extra, table.NumRows())
		}
	}
}

// fillBlanks zero-fills blanks in any column with numeric content, all-blank
// columns included. Blanks in pure-text columns fall back to the empty string.
func fillBlanks(table *grid.Table) {
	for idx := range table.Columns {
		if !columnHasNumeric(table, idx) && !table.ColumnAllBlank(idx) {
			continue
		}
		for _, row := range table.Rows {
			if row[idx].IsBlank() {
				row[idx] = grid.Number(0)
			}
		}
	}
}

func columnHasNumeric(table *grid.Table, idx int) bool {
	for _, row := range table.Rows {
		if _, ok := row[idx].Number(); ok {
			return true
		}
	}
	return false
}

func dropAllBlankColumns(table *grid.Table) {
	for idx := len(table.Columns) - 1; idx >= 0; idx-- {
		if !table.ColumnAllBlank(idx) {
			continue
		}
		table.Columns = append(table.Columns[:idx], table.Columns[idx+1:]...)
		for i := range table.Rows {
			table.Rows[i] = append(table.Rows[i][:idx], table.Rows[i][idx+1:]...)
		}
	}
}
