// Package decode turns downloaded task artifacts (delimited text, free text,
// PDF documents) into numeric values the resolver can aggregate.
//
// Everything here is best-effort: a cell or token that cannot be decoded is
// excluded from computation, never coerced to zero.
package decode

import (
	"regexp"
	"strconv"
	"strings"
)

// Op is an aggregation operation over numeric values.
type Op string

const (
	OpSum     Op = "sum"
	OpCount   Op = "count"
	OpAverage Op = "average"
	OpMax     Op = "max"
	OpMin     Op = "min"
	OpExtract Op = "extract"
	OpUnknown Op = "unknown"
)

// Filter keeps only values satisfying a comparison against a threshold.
// Threshold is always finite when a Filter exists; an unparsable numeric
// token never produces a partially populated filter.
type Filter struct {
	Operator  string  // one of < <= > >= == !=
	Threshold float64
}

// Keep reports whether v passes the filter.
func (f *Filter) Keep(v float64) bool {
	if f == nil {
		return true
	}
	switch f.Operator {
	case "<":
		return v < f.Threshold
	case "<=":
		return v <= f.Threshold
	case ">":
		return v > f.Threshold
	case ">=":
		return v >= f.Threshold
	case "==":
		return v == f.Threshold
	case "!=":
		return v != f.Threshold
	default:
		return true
	}
}

var (
	currencyRunes = "$€£¥"
	numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// CleanNumber parses a single cell into a number, handling thousands
// separators, currency symbols, percent signs, parenthesized negatives
// ("(5)" means -5), and surrounding quotes. The second return is false when
// the cell is not numeric after cleaning.
func CleanNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}

	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	for _, r := range currencyRunes {
		s = strings.ReplaceAll(s, string(r), "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	s = strings.TrimSpace(s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// ExtractNumbers pulls every signed-decimal substring out of free text,
// keeping only values that pass the filter.
func ExtractNumbers(text string, filter *Filter) []float64 {
	matches := numberPattern.FindAllString(text, -1)
	values := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		if filter.Keep(v) {
			values = append(values, v)
		}
	}
	return values
}

// SumText extracts numbers from free text and sums them. Used only when no
// structured tabular source is available.
func SumText(text string, filter *Filter) float64 {
	var sum float64
	for _, v := range ExtractNumbers(text, filter) {
		sum += v
	}
	return sum
}

// Aggregate applies op to values. An empty input yields 0 for every op.
func Aggregate(values []float64, op Op) float64 {
	if len(values) == 0 {
		return 0
	}
	switch op {
	case OpCount:
		return float64(len(values))
	case OpAverage:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case OpMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	case OpMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	default: // OpSum and anything unrecognized aggregates as a sum
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	}
}
