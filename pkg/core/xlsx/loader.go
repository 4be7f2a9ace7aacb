// Package xlsx loads spreadsheet files into dense cell grids.
package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"reportflow/pkg/core/grid"
)

// Workbook holds every sheet of a loaded spreadsheet as a dense grid, plus
// the sheet names in workbook order. Sheet order matters downstream because
// later sheets may read key values extracted from earlier ones.
type Workbook struct {
	Sheets map[string]grid.Sheet
	Order  []string
}

// Sheet returns the named grid.
func (w *Workbook) Sheet(name string) (grid.Sheet, bool) {
	s, ok := w.Sheets[name]
	return s, ok
}

// Loader reads .xlsx files from the local filesystem.
type Loader struct{}

// NewLoader creates a spreadsheet loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load opens the file and materialises every sheet. A file that cannot be
// opened at all is a fatal error for its whole processing run.
func (l *Loader) Load(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet %s: %w", path, err)
	}
	defer f.Close()

	wb := &Workbook{Sheets: make(map[string]grid.Sheet)}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}
		wb.Sheets[name] = grid.Normalize(rows)
		wb.Order = append(wb.Order, name)
	}
	if len(wb.Order) == 0 {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", path)
	}
	return wb, nil
}
