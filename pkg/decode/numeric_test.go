package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$1,234.50", 1234.5, true},
		{"(5)", -5, true},
		{"12%", 12, true},
		{"42", 42, true},
		{"-3.5", -3.5, true},
		{`"99"`, 99, true},
		{"€2,000", 2000, true},
		{"  7  ", 7, true},
		{"($1,000.25)", -1000.25, true},
		{"abc", 0, false},
		{"", 0, false},
		{"12 apples", 0, false},
		{"-", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CleanNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestFilterKeep(t *testing.T) {
	lt := &Filter{Operator: "<", Threshold: 100}
	assert.True(t, lt.Keep(99))
	assert.False(t, lt.Keep(100))

	gte := &Filter{Operator: ">=", Threshold: 10}
	assert.True(t, gte.Keep(10))
	assert.False(t, gte.Keep(9.9))

	ne := &Filter{Operator: "!=", Threshold: 5}
	assert.True(t, ne.Keep(4))
	assert.False(t, ne.Keep(5))

	var nilFilter *Filter
	assert.True(t, nilFilter.Keep(123456))
}

func TestExtractNumbers(t *testing.T) {
	text := "Scores: 5, 95 and 150, then -30 plus 2.5"
	got := ExtractNumbers(text, nil)
	assert.Equal(t, []float64{5, 95, 150, -30, 2.5}, got)

	filtered := ExtractNumbers(text, &Filter{Operator: "<", Threshold: 100})
	assert.Equal(t, []float64{5, 95, -30, 2.5}, filtered)
}

func TestSumText(t *testing.T) {
	assert.InDelta(t, 130.0, SumText("5 then 95 then 30", nil), 1e-9)
	assert.InDelta(t, 0.0, SumText("no numbers here", nil), 1e-9)
}

func TestAggregate(t *testing.T) {
	values := []float64{5, 95, 30}

	assert.InDelta(t, 130, Aggregate(values, OpSum), 1e-9)
	assert.InDelta(t, 3, Aggregate(values, OpCount), 1e-9)
	assert.InDelta(t, 130.0/3, Aggregate(values, OpAverage), 1e-9)
	assert.InDelta(t, 95, Aggregate(values, OpMax), 1e-9)
	assert.InDelta(t, 5, Aggregate(values, OpMin), 1e-9)
	assert.InDelta(t, 130, Aggregate(values, OpUnknown), 1e-9)
	require.Zero(t, Aggregate(nil, OpSum))
}
