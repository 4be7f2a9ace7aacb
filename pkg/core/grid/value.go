// Package grid holds the raw sheet grid and the typed table model that the
// extraction and transform stages operate on.
package grid

import (
	"strconv"
	"strings"
)

// Kind discriminates the variants of a cell value.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
)

// Value is a single table cell: empty, text, or numeric. Numeric values keep
// their original text so round-tripping to the database preserves formatting.
type Value struct {
	kind Kind
	text string
	num  float64
}

func Empty() Value            { return Value{kind: KindEmpty} }
func Text(s string) Value     { return Value{kind: KindText, text: s} }
func Number(f float64) Value  { return Value{kind: KindNumber, num: f, text: formatNumber(f)} }

// Parse builds a Value from a raw spreadsheet cell. Blank cells become the
// empty marker; numeric-looking cells become numbers but keep the raw text.
func Parse(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Empty()
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", ""), 64); err == nil {
		return Value{kind: KindNumber, num: f, text: trimmed}
	}
	return Value{kind: KindText, text: trimmed}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// IsBlank reports whether the value is empty or whitespace-only text. Blank
// values never overwrite existing data in merge-mode persistence.
func (v Value) IsBlank() bool {
	return v.kind == KindEmpty || (v.kind == KindText && strings.TrimSpace(v.text) == "")
}

// Number returns the numeric value. Text that parses as a number counts.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v.text), ",", ""), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// String renders the value the way it should appear in output.
func (v Value) String() string {
	if v.kind == KindEmpty {
		return ""
	}
	if v.text != "" {
		return v.text
	}
	return formatNumber(v.num)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
