package extract

import (
	"log"
	"strings"

	"reportflow/pkg/core/grid"
)

// MergeTables outer-joins two tables from different reports on a shared
// column. Overlapping column names (other than the join column) get a suffix
// derived from each table's source name so both copies survive the join.
func MergeTables(left, right *grid.Table, joinColumn, leftSource, rightSource string) (*grid.Table, bool) {
	if left == nil || right == nil || left.NumRows() == 0 || right.NumRows() == 0 {
		log.Printf("[Extract] WARNING: cannot merge, one or both tables are empty")
		return nil, false
	}
	if left.ColumnIndex(joinColumn) < 0 || right.ColumnIndex(joinColumn) < 0 {
		log.Printf("[Extract] WARNING: merge column %q missing from one of the tables", joinColumn)
		return nil, false
	}

	leftSuffix := sourceSuffix(leftSource, "today")
	rightSuffix := sourceSuffix(rightSource, "tomorrow")

	a, b := left.Clone(), right.Clone()
	for i, name := range a.Columns {
		if name == joinColumn || b.ColumnIndex(name) < 0 {
			continue
		}
		bi := b.ColumnIndex(name)
		a.Columns[i] = name + "_" + leftSuffix
		b.Columns[bi] = name + "_" + rightSuffix
	}
	return outerJoin(a, b, joinColumn), true
}

// sourceSuffix reduces a source report name to its last word.
func sourceSuffix(source, fallback string) string {
	fields := strings.Fields(source)
	if len(fields) == 0 {
		return fallback
	}
	return fields[len(fields)-1]
}
