package pipeline

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/airdash/airdash/internal/dataset"
)

// Statistic names in display order.
const (
	StatCount = "count"
	StatMean  = "mean"
	StatStd   = "std"
	StatMin   = "min"
	StatMax   = "max"
)

// Stat is one row of a summary table.
type Stat struct {
	Name  string
	Value float64
	// Display is the value rounded to 2 decimals, or for min and max the raw
	// value followed by the timestamp of its first occurrence.
	Display string
	// At is set for min and max.
	At *time.Time
}

// SummaryStats is the statistics table for one parameter over a selection.
type SummaryStats struct {
	Parameter string
	Stats     []Stat
}

// Get returns the named statistic.
func (s SummaryStats) Get(name string) (Stat, bool) {
	for _, st := range s.Stats {
		if st.Name == name {
			return st, true
		}
	}
	return Stat{}, false
}

// Summarize returns count, mean, std, min and max of a parameter for display.
func Summarize(d *dataset.Dataset, parameter string) (SummaryStats, error) {
	if !d.Has(parameter) {
		_, err := d.Column(parameter)
		return SummaryStats{}, err
	}
	if d.Len() == 0 {
		return SummaryStats{}, ErrEmptySelection
	}

	desc, err := Describe(d, parameter)
	if err != nil {
		return SummaryStats{}, err
	}

	minAt, maxAt := desc.MinAt, desc.MaxAt
	return SummaryStats{
		Parameter: parameter,
		Stats: []Stat{
			{Name: StatCount, Value: float64(desc.Count), Display: formatRounded(float64(desc.Count))},
			{Name: StatMean, Value: desc.Mean, Display: formatRounded(desc.Mean)},
			{Name: StatStd, Value: desc.Std, Display: formatRounded(desc.Std)},
			{Name: StatMin, Value: desc.Min, Display: formatAt(desc.Min, minAt), At: &minAt},
			{Name: StatMax, Value: desc.Max, Display: formatAt(desc.Max, maxAt), At: &maxAt},
		},
	}, nil
}

func formatRounded(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return formatNonFinite(v)
	}
	return floatString(decimal.NewFromFloat(v).Round(2))
}

func formatAt(v float64, ts time.Time) string {
	var s string
	if math.IsNaN(v) || math.IsInf(v, 0) {
		s = formatNonFinite(v)
	} else {
		s = floatString(decimal.NewFromFloat(v))
	}
	return s + " (" + ts.Format(dataset.TimestampLayout) + ")"
}

// floatString renders integral values with a trailing ".0" so counts and
// whole-number readings read as floats.
func floatString(d decimal.Decimal) string {
	s := d.String()
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func formatNonFinite(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	default:
		return "NaN"
	}
}
