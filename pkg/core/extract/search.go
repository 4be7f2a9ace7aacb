package extract

import (
	"regexp"
	"strings"

	"reportflow/pkg/core/grid"
)

var reYearToken = regexp.MustCompile(`\d{4}`)

// SearchAnchoredStart locates the first row containing a cell whose text
// contains the target substring and returns that row shifted by offset. When
// stripYears is set, 4-digit sequences are removed from both sides before
// comparing, so a title like "סיכום 2025" still anchors when the configured
// text predates the year change.
func SearchAnchoredStart(sheet grid.Sheet, text string, stripYears bool, offset int) (int, bool) {
	want := text
	if stripYears {
		want = stripYearTokens(want)
	}
	for j := 0; j < sheet.NumRows(); j++ {
		for c := range sheet.Row(j) {
			cell := sheet.At(j, c)
			if cell == "" {
				continue
			}
			if stripYears {
				cell = stripYearTokens(cell)
			}
			if strings.Contains(cell, want) {
				return j + offset, true
			}
		}
	}
	return 0, false
}

func stripYearTokens(s string) string {
	return strings.TrimSpace(reYearToken.ReplaceAllString(s, ""))
}
