// Package extract implements the cell-grid extraction algorithms: scalar
// lookups, title-anchored and headerless table detection, text-search
// anchoring, flattening, and cross-region/cross-sheet concatenation.
package extract

import (
	"log"
	"time"

	"reportflow/pkg/core/config"
	"reportflow/pkg/core/grid"
)

// KeyValueSet holds the scalar values extracted from a sheet, keyed by their
// declared titles.
type KeyValueSet map[string]grid.Value

// Merge copies every entry of other into the set. Later sheets overwrite
// earlier values for the same key.
func (s KeyValueSet) Merge(other KeyValueSet) {
	for k, v := range other {
		s[k] = v
	}
}

// KeyValues extracts the declared scalars from the sheet. Declarations without
// a usable position yield empty values; format failures keep the raw value and
// log a warning.
func KeyValues(sheet grid.Sheet, specs []config.KeyValueSpec) KeyValueSet {
	out := make(KeyValueSet, len(specs))
	for _, spec := range specs {
		raw := sheet.At(spec.Row, spec.Col)
		if raw == "" {
			out[spec.Title] = grid.Empty()
			continue
		}
		if spec.Format != "" {
			raw = formatScalar(raw, spec.Format)
		}
		out[spec.Title] = grid.Parse(raw)
	}
	return out
}

// formatScalar applies a declared output format to a raw scalar. The
// month-first-day format additionally understands Hebrew month-year tokens
// and truncates full dates to the first of the month.
func formatScalar(raw, format string) string {
	if format == grid.MonthFirstDayFormat {
		if converted, ok := grid.ParseHebrewMonthYear(raw); ok {
			log.Printf("[Extract] converted month token %q to %q", raw, converted)
			return converted
		}
		if t, ok := grid.ParseDateForMonthTruncate(raw); ok {
			first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
			return first.Format("2006-01-02")
		}
		log.Printf("[Extract] WARNING: could not parse %q as month or date, keeping raw value", raw)
		return raw
	}

	if t, ok := grid.ParseDate(raw); ok {
		return t.Format(grid.StrftimeLayout(format))
	}
	log.Printf("[Extract] WARNING: could not parse date %q for format %q, keeping raw value", raw, format)
	return raw
}
