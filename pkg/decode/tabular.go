package decode

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// DefaultHeaderThreshold is the numeric-field fraction of the first line
// above which the table is classified as headerless.
const DefaultHeaderThreshold = 0.6

// Table is a decoded delimited-text file.
type Table struct {
	// Headers are the column names: real ones when a header line was
	// detected, synthetic col0, col1, … otherwise.
	Headers []string

	// Rows holds the raw cell text, row-major.
	Rows [][]string

	// Headerless records whether the first input line was classified as data.
	Headerless bool
}

// headerPriorityTokens marks column names likely to hold the values a quiz
// asks about.
var headerPriorityTokens = []string{
	"value", "amount", "total", "count", "score", "sum", "price", "number", "qty", "quantity",
}

// DecodeTable parses delimited text. Header presence is inferred, not
// assumed: the first non-empty line is split on the sniffed delimiter and
// parsed field by field; when the numeric fraction exceeds headerThreshold
// the line is data, not a header, and columns get synthetic names. Getting
// this wrong silently drops the first data row, which is exactly the defect
// this decoder exists to avoid.
func DecodeTable(data []byte, headerThreshold float64) (*Table, error) {
	if headerThreshold <= 0 {
		headerThreshold = DefaultHeaderThreshold
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("empty input")
	}

	delimiter := sniffDelimiter(text)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse delimited text: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no records")
	}

	first := records[0]
	numeric := 0
	for _, field := range first {
		if _, ok := CleanNumber(field); ok {
			numeric++
		}
	}
	headerless := len(first) > 0 && float64(numeric)/float64(len(first)) > headerThreshold

	t := &Table{Headerless: headerless}
	if headerless {
		// Every line, including the first, is data.
		width := 0
		for _, rec := range records {
			if len(rec) > width {
				width = len(rec)
			}
		}
		for i := 0; i < width; i++ {
			t.Headers = append(t.Headers, fmt.Sprintf("col%d", i))
		}
		t.Rows = records
	} else {
		for _, h := range first {
			t.Headers = append(t.Headers, strings.TrimSpace(h))
		}
		t.Rows = records[1:]
	}

	return t, nil
}

// sniffDelimiter picks the delimiter with the most occurrences in the first
// line, defaulting to comma.
func sniffDelimiter(text string) rune {
	line := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		line = text[:idx]
	}

	best, bestCount := ',', strings.Count(line, ",")
	for _, cand := range []rune{';', '\t', '|'} {
		if n := strings.Count(line, string(cand)); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best
}

// Column returns the numeric values of column idx, excluding cells that fail
// cleaning, filtered by filter.
func (t *Table) Column(idx int, filter *Filter) []float64 {
	var values []float64
	for _, row := range t.Rows {
		if idx >= len(row) {
			continue
		}
		v, ok := CleanNumber(row[idx])
		if !ok {
			continue
		}
		if filter.Keep(v) {
			values = append(values, v)
		}
	}
	return values
}

// AllColumns returns the numeric values of every column in row-major order,
// filtered by filter.
func (t *Table) AllColumns(filter *Filter) []float64 {
	var values []float64
	for _, row := range t.Rows {
		for _, cell := range row {
			v, ok := CleanNumber(cell)
			if !ok {
				continue
			}
			if filter.Keep(v) {
				values = append(values, v)
			}
		}
	}
	return values
}

// columnScore ranks a column for selection when no explicit target is given.
func (t *Table) columnScore(idx int) float64 {
	header := strings.ToLower(t.Headers[idx])
	bonus := 0.0
	for _, token := range headerPriorityTokens {
		if strings.Contains(header, token) {
			bonus = 1.0
			break
		}
	}

	hits := 0
	total := 0
	for _, row := range t.Rows {
		if idx >= len(row) {
			continue
		}
		total++
		if _, ok := CleanNumber(row[idx]); ok {
			hits++
		}
	}

	ratio := 0.0
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return bonus*1000 + ratio*100 + float64(hits)
}

// SelectColumn picks the highest-scoring column; ties break by encounter
// order. The second return is false when the winning column has zero numeric
// hits, in which case callers fall back to scanning the raw bytes.
func (t *Table) SelectColumn() (int, bool) {
	if len(t.Headers) == 0 {
		return 0, false
	}

	bestIdx, bestScore := 0, -1.0
	for i := range t.Headers {
		score := t.columnScore(i)
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}

	return bestIdx, len(t.Column(bestIdx, nil)) > 0
}
