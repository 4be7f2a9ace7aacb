package grid

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Hebrew month abbreviations and full names, mapped to two-digit month numbers.
// Source reports label monthly data with the abbreviated forms.
var hebrewMonths = map[string]string{
	"ינו": "01", "פבר": "02", "מרץ": "03", "אפר": "04",
	"מאי": "05", "יונ": "06", "יול": "07", "אוג": "08",
	"ספט": "09", "אוק": "10", "נוב": "11", "דצמ": "12",
	"ינואר": "01", "פברואר": "02", "אפריל": "04",
	"יוני": "06", "יולי": "07", "אוגוסט": "08",
	"ספטמבר": "09", "אוקטובר": "10", "נובמבר": "11", "דצמבר": "12",
}

var hebrewMonthFull = map[string]string{
	"ינו": "ינואר", "פבר": "פברואר", "מרץ": "מרץ", "אפר": "אפריל",
	"מאי": "מאי", "יונ": "יוני", "יול": "יולי", "אוג": "אוגוסט",
	"ספט": "ספטמבר", "אוק": "אוקטובר", "נוב": "נובמבר", "דצמ": "דצמבר",
}

// HebrewMonthNames lists the full month names, for filename cleanup.
var HebrewMonthNames = []string{
	"ינואר", "פברואר", "מרץ", "אפריל", "מאי", "יוני",
	"יולי", "אוגוסט", "ספטמבר", "אוקטובר", "נובמבר", "דצמבר",
}

// HebrewMonthNumber resolves a month token (abbreviated or full) to "01".."12".
func HebrewMonthNumber(token string) (string, bool) {
	m, ok := hebrewMonths[strings.TrimSpace(token)]
	return m, ok
}

// HebrewMonthFullName expands an abbreviated month token to its full name.
func HebrewMonthFullName(token string) (string, bool) {
	m, ok := hebrewMonthFull[strings.TrimSpace(token)]
	return m, ok
}

// ParseHebrewMonthYear parses a month-year token such as "יונ-2025" into
// "2025-06-01". The two dash- or space-separated parts may appear in either
// order; the 4-digit numeric part is the year.
func ParseHebrewMonthYear(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	var parts []string
	switch {
	case strings.Contains(s, "-"):
		parts = strings.SplitN(s, "-", 2)
	case strings.Contains(s, " "):
		parts = strings.SplitN(s, " ", 2)
	default:
		return "", false
	}
	if len(parts) != 2 {
		return "", false
	}
	a, b := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	year, month := a, b
	if !isFourDigitYear(year) {
		year, month = b, a
	}
	if !isFourDigitYear(year) {
		return "", false
	}
	num, ok := HebrewMonthNumber(month)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s-%s-01", year, num), true
}

func isFourDigitYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Ordered input layouts tried when a scalar carries a month-truncating output
// format. Mirrors the report producers' observed date renderings.
var monthTruncateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Ordered input layouts tried for every other date output format.
var genericDateLayouts = []string{
	"02.01.06",
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
	"02.01.2006",
}

// ParseDate tries the generic day-first layouts in order.
func ParseDate(s string) (time.Time, bool) {
	return parseWithLayouts(s, genericDateLayouts)
}

// ParseDateForMonthTruncate tries the wider layout list used when the output
// is the first day of the parsed month.
func ParseDateForMonthTruncate(s string) (time.Time, bool) {
	return parseWithLayouts(s, monthTruncateLayouts)
}

func parseWithLayouts(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// strftime-to-Go layout token map. The registry keeps strftime-style output
// formats because they came over verbatim from the report definitions.
var strftimeTokens = []struct {
	tok    string
	layout string
}{
	{"%Y", "2006"},
	{"%y", "06"},
	{"%m", "01"},
	{"%d", "02"},
	{"%H", "15"},
	{"%M", "04"},
	{"%S", "05"},
}

// StrftimeLayout converts a strftime-style format string to a Go time layout.
func StrftimeLayout(format string) string {
	out := format
	for _, t := range strftimeTokens {
		out = strings.ReplaceAll(out, t.tok, t.layout)
	}
	return out
}

// MonthFirstDayFormat is the output format that triggers Hebrew month-year
// parsing and first-of-month truncation.
const MonthFirstDayFormat = "%Y-%m-01"
