package grid

import "strings"

// Sheet is a dense 2-D grid of raw cell values as text. Empty cells are ""
// rather than absent, so (row, col) addressing is always valid inside bounds.
type Sheet [][]string

// At returns the trimmed cell text, or "" when out of bounds.
func (s Sheet) At(row, col int) string {
	if row < 0 || row >= len(s) {
		return ""
	}
	r := s[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

func (s Sheet) NumRows() int { return len(s) }

// Row returns the raw row slice, or nil when out of bounds.
func (s Sheet) Row(i int) []string {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}

// NonEmptyInRow counts the non-blank cells of row i among the given columns.
func (s Sheet) NonEmptyInRow(i int, cols []int) int {
	n := 0
	for _, c := range cols {
		if s.At(i, c) != "" {
			n++
		}
	}
	return n
}

// Normalize pads every row to the same width so column addressing is uniform.
func Normalize(rows [][]string) Sheet {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	out := make(Sheet, len(rows))
	for i, r := range rows {
		row := make([]string, width)
		copy(row, r)
		out[i] = row
	}
	return out
}
