package extract

import (
	"fmt"
	"log"
	"sort"
	"time"

	"reportflow/pkg/core/grid"
)

// NoTitleOptions controls headerless table extraction.
type NoTitleOptions struct {
	StartRow  int
	MinValues int // terminator threshold, defaults to 2
	Headers   []string
	FillNA    bool
	Flatten   bool
	FlatBy    string // column name for the date label; "month" selects month granularity
	DataDate  time.Time
	Exclude   []string
}

// NoTitleTable extracts a table whose boundaries are inferred from cell
// occupancy: the span starts at the first non-empty cell of the start row
// (or a cell whose neighbour one row down is non-empty, tolerating merged
// cells) and ends at the next empty cell. Returns (nil, false) on a miss.
func NoTitleTable(sheet grid.Sheet, opts NoTitleOptions) (*grid.Table, bool) {
	if opts.MinValues == 0 {
		opts.MinValues = minDataCells
	}
	if opts.StartRow >= sheet.NumRows() {
		return nil, false
	}

	cols := detectSpan(sheet, opts.StartRow)
	if len(cols) == 0 {
		return nil, false
	}
	// A single-column region can never satisfy a two-cell terminator.
	if opts.MinValues > len(cols) {
		opts.MinValues = len(cols)
	}

	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = sheet.At(opts.StartRow, c)
	}

	table := grid.NewTable(headers)
	for j := opts.StartRow + 1; j < sheet.NumRows(); j++ {
		if sheet.NonEmptyInRow(j, cols) < opts.MinValues {
			break
		}
		row := make([]grid.Value, len(cols))
		for i, c := range cols {
			row[i] = grid.Parse(sheet.At(j, c))
		}
		table.AppendRow(row)
	}
	if table.NumRows() == 0 {
		return nil, false
	}

	for _, name := range opts.Exclude {
		if !table.DropColumn(name) {
			log.Printf("[Extract] WARNING: excluded column %q not present", name)
		}
	}

	// Flattening runs before relabeling: the declared headers describe the
	// flattened shape.
	if opts.Flatten && !opts.DataDate.IsZero() {
		flat := Flatten(table, opts.FlatBy, opts.DataDate)
		if flat == nil {
			log.Printf("[Extract] ERROR: flattening produced no rows")
			return nil, false
		}
		table = flat
	}

	if opts.FillNA {
		for i := range table.Rows {
			for j, v := range table.Rows[i] {
				if v.IsBlank() {
					table.Rows[i][j] = grid.Number(0)
				}
			}
		}
	}

	applyCustomHeaders(table, opts.Headers, opts.FillNA)

	if !opts.Flatten {
		sortByDateFirstColumn(table)
	}
	return table, true
}

// detectSpan finds the contiguous column span of the header row.
func detectSpan(sheet grid.Sheet, startRow int) []int {
	var cols []int
	found := false
	for c := range sheet.Row(startRow) {
		cell := sheet.At(startRow, c)
		below := sheet.At(startRow+1, c)
		if !found {
			if cell != "" || below != "" {
				found = true
				cols = append(cols, c)
			}
			continue
		}
		if cell == "" {
			break
		}
		cols = append(cols, c)
	}
	return cols
}

// applyCustomHeaders pads missing columns first, then relabels. Surplus
// declared headers always become real columns (blank or zero valued); with
// fewer headers than columns only the leading columns are renamed.
func applyCustomHeaders(table *grid.Table, headers []string, fillNA bool) {
	if len(headers) == 0 {
		return
	}
	if len(headers) > len(table.Columns) {
		pad := grid.Empty()
		if fillNA {
			pad = grid.Number(0)
		}
		for _, extra := range headers[len(table.Columns):] {
			table.AddConstantColumn(extra, pad)
		}
	}
	for i := 0; i < len(table.Columns) && i < len(headers); i++ {
		table.Columns[i] = headers[i]
	}
}

// Flatten reshapes a category-by-metric table into a single row. The first
// column holds category labels; every other column C in a row labelled L
// becomes a column "C_L". A leading date column named after flatBy carries the
// supplied date, month-granular when flatBy is "month".
func Flatten(table *grid.Table, flatBy string, dataDate time.Time) *grid.Table {
	if table == nil || table.NumRows() == 0 || len(table.Columns) < 1 {
		return nil
	}
	if flatBy == "" {
		flatBy = "day"
	}

	dateValue := dataDate.Format("02/01/2006")
	if flatBy == "month" {
		dateValue = dataDate.Format("2006-01")
	}

	columns := []string{flatBy}
	values := []grid.Value{grid.Text(dateValue)}
	for _, row := range table.Rows {
		label := row[0].String()
		for c := 1; c < len(table.Columns); c++ {
			columns = append(columns, fmt.Sprintf("%s_%s", table.Columns[c], label))
			values = append(values, row[c])
		}
	}

	flat := grid.NewTable(columns)
	flat.AppendRow(values)
	return flat
}

// sortByDateFirstColumn sorts rows ascending by the first column when a
// majority of its values parse as dates. Parsed values are normalised to ISO
// form; parse failures keep their raw value and sort last. Best effort.
func sortByDateFirstColumn(table *grid.Table) {
	if len(table.Columns) == 0 || table.NumRows() == 0 {
		return
	}
	if table.ColumnAllNumeric(0) {
		return
	}

	type parsed struct {
		t  time.Time
		ok bool
	}
	times := make([]parsed, table.NumRows())
	count := 0
	for i, row := range table.Rows {
		if t, ok := grid.ParseDate(row[0].String()); ok {
			times[i] = parsed{t, true}
			count++
		}
	}
	if count*2 <= table.NumRows() {
		return
	}

	idx := make([]int, table.NumRows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		pa, pb := times[idx[a]], times[idx[b]]
		if pa.ok != pb.ok {
			return pa.ok
		}
		if !pa.ok {
			return false
		}
		return pa.t.Before(pb.t)
	})

	rows := make([][]grid.Value, table.NumRows())
	for i, j := range idx {
		rows[i] = table.Rows[j]
		if times[j].ok {
			rows[i][0] = grid.Text(times[j].t.Format("2006-01-02"))
		}
	}
	table.Rows = rows
}
