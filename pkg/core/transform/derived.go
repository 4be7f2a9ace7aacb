package transform

import (
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"reportflow/pkg/core/config"
	"reportflow/pkg/core/grid"
)

const defaultRollingWindow = 7

// ApplyDerived computes each declared derived column in order. A column that
// cannot be computed (missing source, bad formula) is logged and omitted; the
// table and its remaining declarations continue.
func ApplyDerived(table *grid.Table, specs []config.DerivedColumnSpec, keyValues map[string]grid.Value, now time.Time) {
	for _, spec := range specs {
		if err := applyOne(table, spec, keyValues, now); err != nil {
			log.Printf("[Transform] WARNING: derived column %q skipped: %v", spec.Name, err)
		}
	}
}

func applyOne(table *grid.Table, spec config.DerivedColumnSpec, keyValues map[string]grid.Value, now time.Time) error {
	switch spec.Type {
	case "cumulative_average":
		return withSource(table, spec, cumulativeAverage)
	case "cumulative_sum":
		return withSource(table, spec, cumulativeSum)
	case "cumulative_count":
		return withSource(table, spec, func(values []grid.Value) []grid.Value {
			return cumulativeCount(values, spec.Condition)
		})
	case "cumulative_max":
		return withSource(table, spec, cumulativeMax)
	case "cumulative_min":
		return withSource(table, spec, cumulativeMin)
	case "rolling_average":
		return withSource(table, spec, func(values []grid.Value) []grid.Value {
			return rollingAggregate(values, spec.Window, true)
		})
	case "rolling_sum":
		return withSource(table, spec, func(values []grid.Value) []grid.Value {
			return rollingAggregate(values, spec.Window, false)
		})
	case "percent_of_total":
		return withSource(table, spec, percentOfTotal)
	case "percent_change":
		return withSource(table, spec, percentChange)
	case "custom_formula":
		return applyFormula(table, spec, keyValues)
	case "current_date":
		stampCurrentDate(table, spec, now)
		return nil
	case "hebrew_month_conversion":
		return withSource(table, spec, hebrewMonthColumn)
	default:
		return errUnknownKind(spec.Type)
	}
}

type columnFunc func([]grid.Value) []grid.Value

func withSource(table *grid.Table, spec config.DerivedColumnSpec, fn columnFunc) error {
	if table.ColumnIndex(spec.SourceColumn) < 0 {
		return errMissingColumn(spec.SourceColumn)
	}
	sortByDateColumn(table, spec.DateColumn)
	source, _ := table.Column(spec.SourceColumn)
	table.AddColumn(spec.Name, fn(source))
	return nil
}

// sortByDateColumn reorders the rows by the declared date column before a
// time-based aggregate runs, so accumulation follows the timeline rather than
// arrival order. The sort persists; later columns see the same order.
func sortByDateColumn(table *grid.Table, column string) {
	if column == "" {
		return
	}
	idx := table.ColumnIndex(column)
	if idx < 0 {
		return
	}
	sort.SliceStable(table.Rows, func(a, b int) bool {
		return valueBefore(table.Rows[a][idx], table.Rows[b][idx])
	})
	log.Printf("[Transform] sorted rows by %q for time-based calculation", column)
}

// valueBefore orders two cells: numbers numerically, dates chronologically,
// everything else by text. Blanks sort last.
func valueBefore(a, b grid.Value) bool {
	if a.IsBlank() {
		return false
	}
	if b.IsBlank() {
		return true
	}
	an, aok := a.Number()
	bn, bok := b.Number()
	if aok && bok {
		return an < bn
	}
	return dateSortKey(a) < dateSortKey(b)
}

func dateSortKey(v grid.Value) string {
	if t, ok := grid.ParseDate(v.String()); ok {
		return t.Format("2006-01-02")
	}
	return v.String()
}

func numericOrZero(v grid.Value) float64 {
	n, ok := v.Number()
	if !ok {
		return 0
	}
	return n
}

func cumulativeAverage(values []grid.Value) []grid.Value {
	out := make([]grid.Value, len(values))
	sum, count := 0.0, 0
	for i, v := range values {
		if n, ok := v.Number(); ok {
			sum += n
			count++
		}
		if count == 0 {
			out[i] = grid.Empty()
			continue
		}
		out[i] = grid.Number(sum / float64(count))
	}
	return out
}

func cumulativeSum(values []grid.Value) []grid.Value {
	out := make([]grid.Value, len(values))
	sum := 0.0
	for i, v := range values {
		sum += numericOrZero(v)
		out[i] = grid.Number(sum)
	}
	return out
}

func cumulativeCount(values []grid.Value, condition string) []grid.Value {
	match, err := parseCondition(condition)
	if err != nil {
		log.Printf("[Transform] WARNING: bad count condition %q: %v, counting all values", condition, err)
		match = nil
	}

	out := make([]grid.Value, len(values))
	count := 0
	for i, v := range values {
		if match != nil {
			if n, ok := v.Number(); ok && match(n) {
				count++
			}
		} else if !v.IsBlank() {
			count++
		}
		out[i] = grid.Number(float64(count))
	}
	return out
}

func cumulativeMax(values []grid.Value) []grid.Value {
	return cumulativeExtreme(values, func(best, n float64) bool { return n > best })
}

func cumulativeMin(values []grid.Value) []grid.Value {
	return cumulativeExtreme(values, func(best, n float64) bool { return n < best })
}

func cumulativeExtreme(values []grid.Value, better func(best, n float64) bool) []grid.Value {
	out := make([]grid.Value, len(values))
	var best float64
	seen := false
	for i, v := range values {
		if n, ok := v.Number(); ok {
			if !seen || better(best, n) {
				best = n
			}
			seen = true
		}
		if !seen {
			out[i] = grid.Empty()
			continue
		}
		out[i] = grid.Number(best)
	}
	return out
}

// rollingAggregate computes a trailing-window sum or mean. Rows before the
// window fills stay null.
func rollingAggregate(values []grid.Value, window int, mean bool) []grid.Value {
	if window <= 0 {
		window = defaultRollingWindow
	}
	out := make([]grid.Value, len(values))
	sum := 0.0
	for i, v := range values {
		sum += numericOrZero(v)
		if i >= window {
			sum -= numericOrZero(values[i-window])
		}
		if i < window-1 {
			out[i] = grid.Empty()
			continue
		}
		if mean {
			out[i] = grid.Number(sum / float64(window))
		} else {
			out[i] = grid.Number(sum)
		}
	}
	return out
}

func percentOfTotal(values []grid.Value) []grid.Value {
	total := 0.0
	for _, v := range values {
		total += numericOrZero(v)
	}
	out := make([]grid.Value, len(values))
	if total == 0 {
		log.Printf("[Transform] WARNING: zero column total, percent_of_total left null")
		for i := range out {
			out[i] = grid.Empty()
		}
		return out
	}
	for i, v := range values {
		out[i] = grid.Number(numericOrZero(v) / total * 100)
	}
	return out
}

func percentChange(values []grid.Value) []grid.Value {
	out := make([]grid.Value, len(values))
	for i, v := range values {
		out[i] = grid.Empty()
		if i == 0 {
			continue
		}
		cur, okCur := v.Number()
		prev, okPrev := values[i-1].Number()
		if !okCur || !okPrev || prev == 0 {
			continue
		}
		out[i] = grid.Number((cur - prev) / prev * 100)
	}
	return out
}

// stampCurrentDate adds a processing-date column. Placement defaults to
// all_rows, unlike key-value injection.
func stampCurrentDate(table *grid.Table, spec config.DerivedColumnSpec, now time.Time) {
	format := spec.Format
	if format == "" {
		format = "%Y-%m-%d"
	}
	var value string
	if format == grid.MonthFirstDayFormat {
		value = now.Format("2006-01") + "-01"
	} else {
		value = now.Format(grid.StrftimeLayout(format))
	}

	placement := spec.Placement
	if placement == "" {
		placement = PlacementAllRows
	}
	addPlacedColumn(table, spec.Name, grid.Text(value), placement)
}

func hebrewMonthColumn(values []grid.Value) []grid.Value {
	out := make([]grid.Value, len(values))
	for i, v := range values {
		if full, ok := grid.HebrewMonthFullName(strings.TrimSpace(v.String())); ok {
			out[i] = grid.Text(full)
			continue
		}
		out[i] = v
	}
	return out
}

// parseCondition turns a comparison like ">= 5" into a numeric predicate.
// An empty condition yields a nil predicate, meaning count every value.
func parseCondition(condition string) (func(float64) bool, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return nil, nil
	}
	ops := []string{">=", "<=", "==", "!=", ">", "<"}
	for _, op := range ops {
		if !strings.HasPrefix(condition, op) {
			continue
		}
		operand, err := strconv.ParseFloat(strings.TrimSpace(condition[len(op):]), 64)
		if err != nil {
			return nil, err
		}
		switch op {
		case ">=":
			return func(n float64) bool { return n >= operand }, nil
		case "<=":
			return func(n float64) bool { return n <= operand }, nil
		case "==":
			return func(n float64) bool { return n == operand }, nil
		case "!=":
			return func(n float64) bool { return n != operand }, nil
		case ">":
			return func(n float64) bool { return n > operand }, nil
		default:
			return func(n float64) bool { return n < operand }, nil
		}
	}
	return nil, errBadCondition(condition)
}
