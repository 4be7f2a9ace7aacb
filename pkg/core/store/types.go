package store

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"reportflow/pkg/core/grid"
)

// typeSampleSize bounds how many values are examined per column when
// inferring a SQL type.
const typeSampleSize = 100

var (
	reNonWord   = regexp.MustCompile(`[^\w\s-]`)
	reSeparator = regexp.MustCompile(`[\s-]+`)
	reUnder     = regexp.MustCompile(`_+`)
)

// sanitizeIdent normalizes a column name: lower-cased, spaces and hyphens
// become underscores.
func sanitizeIdent(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = reSeparator.ReplaceAllString(s, "_")
	return s
}

// SanitizeTableName converts a declared table name into a valid identifier.
func SanitizeTableName(name string) string {
	s := reNonWord.ReplaceAllString(name, "_")
	s = reSeparator.ReplaceAllString(s, "_")
	s = reUnder.ReplaceAllString(s, "_")
	s = strings.ToLower(strings.Trim(s, "_"))
	if s == "" {
		return "unnamed_table"
	}
	first := rune(s[0])
	if !(first == '_' || (first >= 'a' && first <= 'z')) {
		s = "table_" + s
	}
	return s
}

var dateShapes = []string{"02/01/2006", "2006-01-02"}

func looksLikeDate(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, layout := range dateShapes {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func looksLikeBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false":
		return true
	}
	return false
}

// inferColumnType picks a SQL type from up to 100 non-blank sampled values:
// INTEGER when every sample is a whole number, DECIMAL for other numerics,
// BOOLEAN and DATE by shape (dates need a majority of the sample), otherwise
// a VARCHAR sized to the longest sample plus headroom.
func inferColumnType(values []grid.Value) string {
	var sample []grid.Value
	for _, v := range values {
		if v.IsBlank() {
			continue
		}
		sample = append(sample, v)
		if len(sample) == typeSampleSize {
			break
		}
	}
	if len(sample) == 0 {
		return "VARCHAR(500)"
	}

	allInt, allNum, allBool := true, true, true
	dateLike, maxLen := 0, 0
	for _, v := range sample {
		s := v.String()
		if len(s) > maxLen {
			maxLen = len(s)
		}
		n, numeric := v.Number()
		if !numeric {
			allNum, allInt = false, false
		} else if n != math.Trunc(n) {
			allInt = false
		}
		if !looksLikeBool(s) {
			allBool = false
		}
		if looksLikeDate(s) {
			dateLike++
		}
	}

	switch {
	case allInt:
		return "INTEGER"
	case allNum:
		return "DECIMAL(10,2)"
	case allBool:
		return "BOOLEAN"
	case dateLike*2 > len(sample):
		return "DATE"
	}
	width := maxLen + 100
	if width < 200 {
		width = 200
	}
	if width > 1000 {
		width = 1000
	}
	return fmt.Sprintf("VARCHAR(%d)", width)
}

// convertValue maps a cell to the driver value matching the column's SQL
// type. Blank cells become NULL.
func convertValue(v grid.Value, sqlType string) any {
	if v.IsBlank() {
		return nil
	}
	switch {
	case sqlType == "INTEGER":
		if n, ok := v.Number(); ok {
			return int64(n)
		}
	case strings.HasPrefix(sqlType, "DECIMAL"):
		if n, ok := v.Number(); ok {
			return n
		}
	case sqlType == "BOOLEAN":
		return strings.EqualFold(v.String(), "true")
	case sqlType == "DATE":
		if t, ok := grid.ParseDate(v.String()); ok {
			return t
		}
	}
	return v.String()
}
