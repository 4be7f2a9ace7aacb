package transform

import (
	"log"

	"reportflow/pkg/core/config"
	"reportflow/pkg/core/grid"
)

// Placement policies for injected scalar columns.
const (
	PlacementAllRows  = "all_rows"
	PlacementFirstRow = "first_row"
	PlacementLastRow  = "last_row"
)

// InjectKeyValues adds one column per declaration marked add_to_table,
// carrying the extracted scalar. Placement defaults to last_row: only the
// final row holds the value, earlier rows stay empty.
func InjectKeyValues(table *grid.Table, specs []config.KeyValueSpec, keyValues map[string]grid.Value) {
	for _, spec := range specs {
		if !spec.AddToTable {
			continue
		}
		value, ok := keyValues[spec.Title]
		if !ok {
			log.Printf("[Transform] WARNING: key value %q not extracted, skipping injection", spec.Title)
			continue
		}
		addPlacedColumn(table, spec.Title, value, spec.Placement)
	}
}

// addPlacedColumn adds a column whose value lands on all rows, the first row,
// or the last row, with empty values elsewhere.
func addPlacedColumn(table *grid.Table, name string, value grid.Value, placement string) {
	if placement == "" {
		placement = PlacementLastRow
	}
	switch placement {
	case PlacementAllRows:
		table.AddConstantColumn(name, value)
		return
	case PlacementFirstRow, PlacementLastRow:
	default:
		log.Printf("[Transform] WARNING: unknown placement %q for %q, using %s", placement, name, PlacementLastRow)
		placement = PlacementLastRow
	}

	column := make([]grid.Value, table.NumRows())
	for i := range column {
		column[i] = grid.Empty()
	}
	if len(column) > 0 {
		if placement == PlacementFirstRow {
			column[0] = value
		} else {
			column[len(column)-1] = value
		}
	}
	table.AddColumn(name, column)
}
