// Package transform applies the declared post-extraction steps to a table:
// key-value injection, derived-column computation, column renaming, and date
// stamping.
package transform

import (
	"log"
	"time"

	"reportflow/pkg/core/config"
	"reportflow/pkg/core/grid"
)

// Options carries the per-table transform declaration.
type Options struct {
	AddKeys      bool
	KeySpecs     []config.KeyValueSpec
	Headers      []string
	Derived      []config.DerivedColumnSpec
	Concatenated bool
	AddDataDate  bool
	FillNA       bool
}

// ReportDateKey is the key-value title that supplies the data date stamp.
const ReportDateKey = "report_date"

// Apply runs the transform steps in their fixed order: key-value injection,
// then derive-and-rename (ordinary tables) or rename-and-derive (concatenated
// tables, whose formulas reference the renamed columns), then the data-date
// stamp.
func Apply(table *grid.Table, opts Options, keyValues map[string]grid.Value, now time.Time) *grid.Table {
	if table == nil {
		return nil
	}

	if opts.AddKeys {
		InjectKeyValues(table, opts.KeySpecs, keyValues)
	}

	if opts.Concatenated {
		renameColumns(table, opts.Headers, opts.FillNA)
		ApplyDerived(table, opts.Derived, keyValues, now)
	} else {
		ApplyDerived(table, opts.Derived, keyValues, now)
		renameColumns(table, opts.Headers, opts.FillNA)
	}

	if opts.AddDataDate {
		stampDataDate(table, keyValues)
	}
	return table
}

// renameColumns relabels the leading columns with the declared headers.
// Surplus headers always become new blank-valued columns (zero-valued under
// fill-blanks); surplus columns keep their extracted names.
func renameColumns(table *grid.Table, headers []string, fillNA bool) {
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

// stampDataDate adds a date column from the extracted report date, converted
// from day/month/year to ISO form.
func stampDataDate(table *grid.Table, keyValues map[string]grid.Value) {
	raw, ok := keyValues[ReportDateKey]
	if !ok || raw.IsBlank() {
		log.Printf("[Transform] WARNING: no %s key value, skipping date stamp", ReportDateKey)
		return
	}
	value := raw.String()
	if t, ok := grid.ParseDate(value); ok {
		value = t.Format("2006-01-02")
	} else {
		log.Printf("[Transform] WARNING: report date %q not parseable, stamping raw value", raw.String())
	}
	table.AddConstantColumn("date", grid.Text(value))
}
