package pipeline

import (
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/airdash/airdash/internal/dataset"
)

// ErrEmptySelection is returned when a selection has no rows or no present values.
var ErrEmptySelection = errors.New("selection contains no values")

// Description holds descriptive statistics over the present values of one parameter.
type Description struct {
	Parameter string
	Count     int
	Mean      float64
	// Std is the sample standard deviation, NaN when Count < 2.
	Std   float64
	Min   float64
	Q25   float64
	Q50   float64
	Q75   float64
	Max   float64
	MinAt time.Time
	MaxAt time.Time
}

// Describe computes count, mean, std, quartiles, min and max of a parameter,
// with the first timestamps at which min and max occur. Missing values are skipped.
func Describe(d *dataset.Dataset, parameter string) (Description, error) {
	col, err := d.Column(parameter)
	if err != nil {
		return Description{}, err
	}

	present := make([]float64, 0, len(col))
	minIdx, maxIdx := -1, -1
	for i, v := range col {
		if math.IsNaN(v) {
			continue
		}
		present = append(present, v)
		if minIdx < 0 || v < col[minIdx] {
			minIdx = i
		}
		if maxIdx < 0 || v > col[maxIdx] {
			maxIdx = i
		}
	}
	if len(present) == 0 {
		return Description{}, ErrEmptySelection
	}

	desc := Description{
		Parameter: parameter,
		Count:     len(present),
		Mean:      stat.Mean(present, nil),
		Std:       math.NaN(),
		Min:       floats.Min(present),
		Max:       floats.Max(present),
		MinAt:     d.Timestamp(minIdx),
		MaxAt:     d.Timestamp(maxIdx),
	}
	if len(present) > 1 {
		desc.Std = stat.StdDev(present, nil)
	}

	sort.Float64s(present)
	desc.Q25 = quantile(0.25, present)
	desc.Q50 = quantile(0.50, present)
	desc.Q75 = quantile(0.75, present)

	return desc, nil
}

// quantile interpolates linearly between closest ranks over sorted values,
// the convention of most dataframe libraries.
func quantile(p float64, sorted []float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := math.Floor(pos)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (pos-lo)*(sorted[i+1]-sorted[i])
}
